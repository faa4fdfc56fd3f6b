package trader

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribot/strategy"
)

func openTestPosition(pm *PositionManager, symbol, strategyID string, side strategy.Side, entry float64) {
	pm.Open(Position{
		Symbol:     symbol,
		StrategyID: strategyID,
		Side:       side,
		Size:       2,
		EntryPrice: entry,
		StopLoss:   entry * 0.99,
		OpenedAt:   time.Now().UTC(),
	})
}

func TestPositionManagerSingleEntryPerKey(t *testing.T) {
	pm := NewPositionManager()

	openTestPosition(pm, "BTCUSDT", "trend", strategy.SideBuy, 100)
	assert.True(t, pm.HasOpen("BTCUSDT", "trend"))
	assert.False(t, pm.HasOpen("BTCUSDT", "scalp"))
	assert.False(t, pm.HasOpen("ETHUSDT", "trend"))

	// 同键重复开仓只保留一条
	openTestPosition(pm, "BTCUSDT", "trend", strategy.SideSell, 200)
	assert.Equal(t, 1, pm.OpenCount())
	position, ok := pm.Get("BTCUSDT", "trend")
	require.True(t, ok)
	assert.Equal(t, 200.0, position.EntryPrice)
}

func TestCloseWithExitPnl(t *testing.T) {
	pm := NewPositionManager()
	closedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// 多单：(exit - entry) * size
	openTestPosition(pm, "BTCUSDT", "trend", strategy.SideBuy, 100)
	record := pm.CloseWithExit("BTCUSDT", "trend", 110, closedAt)
	require.NotNil(t, record)
	assert.Equal(t, 20.0, record.Pnl)
	assert.False(t, pm.HasOpen("BTCUSDT", "trend"))

	// 空单：(entry - exit) * size
	openTestPosition(pm, "BTCUSDT", "scalp", strategy.SideSell, 100)
	record = pm.CloseWithExit("BTCUSDT", "scalp", 110, closedAt)
	require.NotNil(t, record)
	assert.Equal(t, -20.0, record.Pnl)

	// 不存在的持仓返回 nil，不报错
	assert.Nil(t, pm.CloseWithExit("BTCUSDT", "trend", 120, closedAt))
}

func TestCloseWithExitExactlyOnce(t *testing.T) {
	pm := NewPositionManager()
	openTestPosition(pm, "BTCUSDT", "candle3", strategy.SideBuy, 100)

	// 监控任务和主循环并发平同一个仓，只允许产生一条成交记录
	var wg sync.WaitGroup
	records := make([]*TradeRecord, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i] = pm.CloseWithExit("BTCUSDT", "candle3", 105, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	count := 0
	for _, r := range records {
		if r != nil {
			count++
		}
	}
	assert.Equal(t, 1, count, "同一持仓并发平仓只能产生一条成交记录")
	assert.Len(t, pm.ClosedTrades(100), 1)
}

func TestTradeStats(t *testing.T) {
	pm := NewPositionManager()

	// 零成交：胜率为 0，不允许除零
	stats := pm.Stats()
	assert.Equal(t, 0, stats.Trades)
	assert.Equal(t, 0.0, stats.WinRate)

	closedAt := time.Now().UTC()
	openTestPosition(pm, "BTCUSDT", "trend", strategy.SideBuy, 100)
	pm.CloseWithExit("BTCUSDT", "trend", 110, closedAt) // +20
	openTestPosition(pm, "BTCUSDT", "trend", strategy.SideBuy, 100)
	pm.CloseWithExit("BTCUSDT", "trend", 95, closedAt) // -10
	openTestPosition(pm, "BTCUSDT", "scalp", strategy.SideSell, 100)
	pm.CloseWithExit("BTCUSDT", "scalp", 90, closedAt) // +20

	stats = pm.Stats()
	assert.Equal(t, 3, stats.Trades)
	assert.Equal(t, 2, stats.Wins)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
	assert.Equal(t, 30.0, stats.Pnl)

	trend := stats.PerStrategy["trend"]
	assert.Equal(t, 2, trend.Trades)
	assert.Equal(t, 1, trend.Wins)
	assert.Equal(t, 10.0, trend.Pnl)
}

func TestClosedTradesLimit(t *testing.T) {
	pm := NewPositionManager()
	for i := 0; i < 5; i++ {
		openTestPosition(pm, "BTCUSDT", "scalp", strategy.SideBuy, 100+float64(i))
		pm.CloseWithExit("BTCUSDT", "scalp", 110, time.Now().UTC())
	}

	recent := pm.ClosedTrades(3)
	require.Len(t, recent, 3)
	// 取最近3条，时间正序
	assert.Equal(t, 102.0, recent[0].EntryPrice)
	assert.Equal(t, 104.0, recent[2].EntryPrice)
}
