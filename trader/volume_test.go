package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestVolumeManager() *VolumeManager {
	return NewVolumeManager(VolumeConfig{
		MonthlyTarget: 3_000_000,
		TradingDays:   30,
		Allocations:   map[string]float64{"trend": 0.25, "scalp": 0.55, "candle3": 0.2},
	})
}

func TestDailyTarget(t *testing.T) {
	vm := newTestVolumeManager()
	assert.Equal(t, 100_000.0, vm.DailyTarget())

	// trading_days < 1 按 1 处理
	vm2 := NewVolumeManager(VolumeConfig{MonthlyTarget: 500, TradingDays: 0})
	assert.Equal(t, 500.0, vm2.DailyTarget())
}

func TestRegisterTradeRollover(t *testing.T) {
	vm := newTestVolumeManager()
	day1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	vm.RegisterTrade("scalp", 10_000, day1)
	vm.RegisterTrade("trend", 5_000, day1)
	assert.Equal(t, 15_000.0, vm.DailyVolume())
	assert.Equal(t, 15_000.0, vm.MonthlyVolume())
	assert.Equal(t, 10_000.0, vm.StrategyVolume()["scalp"])

	// 日翻转：日计数清零，月计数保留
	day2 := day1.Add(24 * time.Hour)
	vm.RegisterTrade("scalp", 1_000, day2)
	assert.Equal(t, 1_000.0, vm.DailyVolume())
	assert.Equal(t, 16_000.0, vm.MonthlyVolume())

	// 月翻转：月计数和分策略计数全部清零
	nextMonth := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	vm.RegisterTrade("trend", 2_000, nextMonth)
	assert.Equal(t, 2_000.0, vm.MonthlyVolume())
	assert.Equal(t, 0.0, vm.StrategyVolume()["scalp"])
	assert.Equal(t, 2_000.0, vm.StrategyVolume()["trend"])
}

func TestStrategyRemaining(t *testing.T) {
	vm := newTestVolumeManager()
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// trend 配额 = 100000 * 0.25
	assert.Equal(t, 25_000.0, vm.StrategyRemaining("trend", ts))

	vm.RegisterTrade("trend", 20_000, ts)
	assert.Equal(t, 5_000.0, vm.StrategyRemaining("trend", ts))

	// 超额后不为负
	vm.RegisterTrade("trend", 10_000, ts)
	assert.Equal(t, 0.0, vm.StrategyRemaining("trend", ts))

	// 未配置的策略按 1.0 配额
	assert.Equal(t, 100_000.0, vm.StrategyRemaining("unknown", ts))
}

func TestComputeSize(t *testing.T) {
	vm := newTestVolumeManager()
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// 风险定量 = 0.005*100000/(100*1) = 5
	// 配额定量 = 25000/2/50000 = 0.25，二者取小
	size := vm.ComputeSize("trend", 0.005, 100_000, 100, 1.0, 2, 50_000, ts)
	assert.Equal(t, 0.25, size)

	// 配额充裕时走风险定量：55000/20/100 = 27.5 >> 0.25
	size = vm.ComputeSize("scalp", 0.005, 100_000, 2_000, 1.0, 20, 100, ts)
	assert.InDelta(t, 0.25, size, 1e-9)

	// 非法输入一律返回 0
	assert.Equal(t, 0.0, vm.ComputeSize("trend", 0.005, 100_000, 0, 1.0, 2, 50_000, ts))
	assert.Equal(t, 0.0, vm.ComputeSize("trend", 0.005, 100_000, 100, 0, 2, 50_000, ts))
	assert.Equal(t, 0.0, vm.ComputeSize("trend", 0.005, 100_000, 100, 1.0, 0, 50_000, ts))
	assert.Equal(t, 0.0, vm.ComputeSize("trend", 0.005, 100_000, 100, 1.0, 2, 0, ts))
}
