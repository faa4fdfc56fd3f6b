package trader

import (
	"math"
	"sync"
	"time"

	"tribot/strategy"
)

// Position 持仓记录，以 (symbol, strategy_id) 为唯一键
type Position struct {
	Symbol     string        `json:"symbol"`
	StrategyID string        `json:"strategy_id"`
	Side       strategy.Side `json:"side"`
	Size       float64       `json:"size"`
	EntryPrice float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit,omitempty"`
	HasTarget  bool          `json:"has_target"`
	OpenedAt   time.Time     `json:"opened_at"`
}

// TradeRecord 平仓后生成的成交记录，追加后不再修改
type TradeRecord struct {
	Symbol     string        `json:"symbol"`
	StrategyID string        `json:"strategy_id"`
	Side       strategy.Side `json:"side"`
	Size       float64       `json:"size"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	OpenedAt   time.Time     `json:"opened_at"`
	ClosedAt   time.Time     `json:"closed_at"`
	Pnl        float64       `json:"pnl"`
}

// StrategyStats 单个策略的盈亏统计
type StrategyStats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	Pnl     float64 `json:"pnl"`
}

// TradeStats 总体 + 分策略的盈亏统计
type TradeStats struct {
	Trades      int                      `json:"trades"`
	Wins        int                      `json:"wins"`
	WinRate     float64                  `json:"win_rate"`
	Pnl         float64                  `json:"pnl"`
	PerStrategy map[string]StrategyStats `json:"per_strategy,omitempty"`
}

// PositionManager 持仓台账：开平仓的唯一权威记录。
// 不变式：同一 (symbol, strategy_id) 同一时刻最多一条持仓。
// 方法自身线程安全；"检查-再开仓"这类组合操作由 OrderManager 的互斥锁保证原子性。
type PositionManager struct {
	mu           sync.RWMutex
	positions    map[string]Position
	closedTrades []TradeRecord
}

// NewPositionManager 创建持仓台账
func NewPositionManager() *PositionManager {
	return &PositionManager{positions: make(map[string]Position)}
}

func positionKey(symbol, strategyID string) string {
	return symbol + ":" + strategyID
}

// HasOpen 是否已有该键的持仓
func (pm *PositionManager) HasOpen(symbol, strategyID string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	_, ok := pm.positions[positionKey(symbol, strategyID)]
	return ok
}

// Open 写入持仓（覆盖同键旧值；调用方必须先检查 HasOpen）
func (pm *PositionManager) Open(position Position) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.positions[positionKey(position.Symbol, position.StrategyID)] = position
}

// Get 读取持仓
func (pm *PositionManager) Get(symbol, strategyID string) (Position, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.positions[positionKey(symbol, strategyID)]
	return p, ok
}

// Close 仅移除持仓，不生成成交记录（管理性清理用）
func (pm *PositionManager) Close(symbol, strategyID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.positions, positionKey(symbol, strategyID))
}

// CloseWithExit 移除持仓并按成交价结算盈亏，生成唯一一条成交记录。
// 持仓不存在时返回 nil（不是错误：并发平仓路径靠这个语义收敛到恰好一次）。
func (pm *PositionManager) CloseWithExit(symbol, strategyID string, exitPrice float64, closedAt time.Time) *TradeRecord {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	key := positionKey(symbol, strategyID)
	position, ok := pm.positions[key]
	if !ok {
		return nil
	}
	delete(pm.positions, key)

	var pnl float64
	if position.Side == strategy.SideBuy {
		pnl = (exitPrice - position.EntryPrice) * position.Size
	} else {
		pnl = (position.EntryPrice - exitPrice) * position.Size
	}

	record := TradeRecord{
		Symbol:     position.Symbol,
		StrategyID: position.StrategyID,
		Side:       position.Side,
		Size:       position.Size,
		EntryPrice: position.EntryPrice,
		ExitPrice:  exitPrice,
		OpenedAt:   position.OpenedAt,
		ClosedAt:   closedAt,
		Pnl:        pnl,
	}
	pm.closedTrades = append(pm.closedTrades, record)
	return &record
}

// OpenPositions 当前全部持仓快照
func (pm *PositionManager) OpenPositions() []Position {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]Position, 0, len(pm.positions))
	for _, p := range pm.positions {
		out = append(out, p)
	}
	return out
}

// OpenCount 当前持仓数量
func (pm *PositionManager) OpenCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.positions)
}

// ClosedTrades 最近 limit 条成交记录（时间正序）
func (pm *PositionManager) ClosedTrades(limit int) []TradeRecord {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if limit <= 0 || limit > len(pm.closedTrades) {
		limit = len(pm.closedTrades)
	}
	out := make([]TradeRecord, limit)
	copy(out, pm.closedTrades[len(pm.closedTrades)-limit:])
	return out
}

// Stats 汇总盈亏统计；零成交时胜率为 0，不做除零
func (pm *PositionManager) Stats() TradeStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := TradeStats{PerStrategy: make(map[string]StrategyStats)}
	for _, trade := range pm.closedTrades {
		stats.Trades++
		stats.Pnl += trade.Pnl
		won := trade.Pnl > 0
		if won {
			stats.Wins++
		}

		s := stats.PerStrategy[trade.StrategyID]
		s.Trades++
		s.Pnl += trade.Pnl
		if won {
			s.Wins++
		}
		stats.PerStrategy[trade.StrategyID] = s
	}

	if stats.Trades > 0 {
		stats.WinRate = round2(float64(stats.Wins) / float64(stats.Trades) * 100)
	}
	stats.Pnl = round2(stats.Pnl)
	for id, s := range stats.PerStrategy {
		if s.Trades > 0 {
			s.WinRate = round2(float64(s.Wins) / float64(s.Trades) * 100)
		}
		s.Pnl = round2(s.Pnl)
		stats.PerStrategy[id] = s
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
