package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribot/strategy"
	"tribot/trader"
)

func testRecord(symbol string, pnl float64, closedAt time.Time) trader.TradeRecord {
	return trader.TradeRecord{
		Symbol:     symbol,
		StrategyID: "trend",
		Side:       strategy.SideBuy,
		Size:       1.5,
		EntryPrice: 100,
		ExitPrice:  100 + pnl/1.5,
		OpenedAt:   closedAt.Add(-time.Hour),
		ClosedAt:   closedAt,
		Pnl:        pnl,
	}
}

func TestTradeStoreAppendAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(testRecord("BTCUSDT", 20, base)))
	require.NoError(t, s.Append(testRecord("ETHUSDT", -10, base.Add(time.Minute))))
	require.NoError(t, s.Append(testRecord("BTCUSDT", 5, base.Add(2*time.Minute))))

	records, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// 按平仓时间倒序
	assert.Equal(t, 5.0, records[0].Pnl)
	assert.Equal(t, "BTCUSDT", records[0].Symbol)
	assert.Equal(t, -10.0, records[1].Pnl)
	assert.Equal(t, strategy.SideBuy, records[0].Side)
	assert.True(t, records[0].ClosedAt.Equal(base.Add(2*time.Minute)))
}

func TestTradeStoreEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTradeStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(testRecord("BTCUSDT", 20, time.Now().UTC())))
	require.NoError(t, s.Close())

	// 重开后历史仍在
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	records, err := s.Recent(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
