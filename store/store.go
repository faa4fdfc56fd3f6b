// Package store 用 SQLite 持久化已平仓的成交记录。
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tribot/strategy"
	"tribot/trader"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT    NOT NULL,
	strategy_id TEXT    NOT NULL,
	side        TEXT    NOT NULL,
	size        REAL    NOT NULL,
	entry_price REAL    NOT NULL,
	exit_price  REAL    NOT NULL,
	opened_at   TEXT    NOT NULL,
	closed_at   TEXT    NOT NULL,
	pnl         REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);
`

// TradeStore 成交日志，进程重启后历史仍可查询
type TradeStore struct {
	db *sql.DB
}

// Open 打开（必要时创建）成交日志数据库
func Open(path string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开成交日志失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化成交日志表失败: %w", err)
	}
	return &TradeStore{db: db}, nil
}

// Append 追加一条已平仓记录
func (s *TradeStore) Append(record trader.TradeRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO trades (symbol, strategy_id, side, size, entry_price, exit_price, opened_at, closed_at, pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Symbol, record.StrategyID, string(record.Side), record.Size,
		record.EntryPrice, record.ExitPrice,
		record.OpenedAt.UTC().Format(time.RFC3339),
		record.ClosedAt.UTC().Format(time.RFC3339),
		record.Pnl,
	)
	return err
}

// Recent 返回最近 limit 条成交，按平仓时间倒序
func (s *TradeStore) Recent(limit int) ([]trader.TradeRecord, error) {
	rows, err := s.db.Query(
		`SELECT symbol, strategy_id, side, size, entry_price, exit_price, opened_at, closed_at, pnl
		 FROM trades ORDER BY closed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []trader.TradeRecord
	for rows.Next() {
		var (
			record             trader.TradeRecord
			side               string
			openedAt, closedAt string
		)
		if err := rows.Scan(&record.Symbol, &record.StrategyID, &side, &record.Size,
			&record.EntryPrice, &record.ExitPrice, &openedAt, &closedAt, &record.Pnl); err != nil {
			return nil, err
		}
		record.Side = strategy.Side(side)
		if t, err := time.Parse(time.RFC3339, openedAt); err == nil {
			record.OpenedAt = t
		}
		if t, err := time.Parse(time.RFC3339, closedAt); err == nil {
			record.ClosedAt = t
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close 关闭数据库
func (s *TradeStore) Close() error {
	return s.db.Close()
}
