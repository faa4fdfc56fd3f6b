package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTradeDailyLossLimit(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	rm.StartDay(100_000, ts)
	assert.True(t, rm.CanTrade(100_000, ts))

	// 3% 上限：-3000 正好触线
	rm.RegisterPnl(-3000)
	assert.False(t, rm.CanTrade(100_000, ts))

	// 日翻转后重新放行
	nextDay := ts.Add(24 * time.Hour)
	assert.True(t, rm.CanTrade(100_000, nextDay))
}

func TestCanTradeConsecutiveLosses(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	rm.StartDay(100_000, ts)

	rm.RegisterPnl(-100)
	rm.RegisterPnl(-100)
	assert.True(t, rm.CanTrade(100_000, ts))

	rm.RegisterPnl(-100)
	assert.False(t, rm.CanTrade(100_000, ts), "连亏3笔后拒绝开仓")

	// 一笔盈利清零连亏计数
	rm.RegisterPnl(50)
	assert.True(t, rm.CanTrade(100_000, ts))
}

func TestCanTradeHourlyOrderCap(t *testing.T) {
	cfg := DefaultRiskConfig()
	cfg.MaxOrdersPerHour = 2
	rm := NewRiskManager(cfg)
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	rm.StartDay(100_000, ts)

	rm.RegisterOrder(ts)
	assert.True(t, rm.CanTrade(100_000, ts))
	rm.RegisterOrder(ts)
	assert.False(t, rm.CanTrade(100_000, ts))

	// 下一个小时计数清零
	nextHour := ts.Add(time.Hour)
	assert.True(t, rm.CanTrade(100_000, nextHour))
}

func TestCanTradeAdoptsEquityBaseline(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// 日初权益未建立时，首次检查采用传入权益作为基准
	rm.StartDay(0, ts)
	rm.RegisterPnl(-2000)
	assert.True(t, rm.CanTrade(100_000, ts))

	rm.RegisterPnl(-1000)
	assert.False(t, rm.CanTrade(100_000, ts))
}
