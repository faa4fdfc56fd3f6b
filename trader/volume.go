package trader

import (
	"sync"
	"time"
)

// VolumeConfig 成交量目标配置
type VolumeConfig struct {
	MonthlyTarget float64            // 月度成交额目标（名义价值）
	TradingDays   int                // 每月按多少个交易日摊分
	Allocations   map[string]float64 // 各策略分到的日目标比例（合计应 <= 1）
}

// VolumeManager 按日/月key翻转的成交额计数器，用于对照目标给订单定量
type VolumeManager struct {
	cfg VolumeConfig

	mu             sync.Mutex
	dailyVolume    float64
	monthlyVolume  float64
	strategyVolume map[string]float64
	currentDay     string
	currentMonth   string
}

// NewVolumeManager 创建成交量管理器
func NewVolumeManager(cfg VolumeConfig) *VolumeManager {
	now := time.Now().UTC()
	strategyVolume := make(map[string]float64, len(cfg.Allocations))
	for id := range cfg.Allocations {
		strategyVolume[id] = 0
	}
	return &VolumeManager{
		cfg:            cfg,
		strategyVolume: strategyVolume,
		currentDay:     dayID(now),
		currentMonth:   monthID(now),
	}
}

func monthID(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// DailyTarget 日成交额目标 = 月目标 / 交易日数
func (vm *VolumeManager) DailyTarget() float64 {
	days := vm.cfg.TradingDays
	if days < 1 {
		days = 1
	}
	return vm.cfg.MonthlyTarget / float64(days)
}

// 日翻转清零日计数；月翻转清零月计数和全部分策略计数
func (vm *VolumeManager) rollIfNeededLocked(ts time.Time) {
	if key := dayID(ts); key != vm.currentDay {
		vm.dailyVolume = 0
		vm.currentDay = key
	}
	if key := monthID(ts); key != vm.currentMonth {
		vm.monthlyVolume = 0
		for id := range vm.strategyVolume {
			vm.strategyVolume[id] = 0
		}
		vm.currentMonth = key
	}
}

// RegisterTrade 登记一笔成交的名义价值
func (vm *VolumeManager) RegisterTrade(strategyID string, notional float64, ts time.Time) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.rollIfNeededLocked(ts)
	vm.dailyVolume += notional
	vm.monthlyVolume += notional
	vm.strategyVolume[strategyID] += notional
}

// DailyVolume 当日累计成交额
func (vm *VolumeManager) DailyVolume() float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.dailyVolume
}

// MonthlyVolume 当月累计成交额
func (vm *VolumeManager) MonthlyVolume() float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.monthlyVolume
}

// StrategyVolume 各策略当月累计成交额快照
func (vm *VolumeManager) StrategyVolume() map[string]float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make(map[string]float64, len(vm.strategyVolume))
	for id, v := range vm.strategyVolume {
		out[id] = v
	}
	return out
}

// StrategyRemaining 策略在日目标配额内的剩余成交额
func (vm *VolumeManager) StrategyRemaining(strategyID string, ts time.Time) float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.strategyRemainingLocked(strategyID, ts)
}

func (vm *VolumeManager) strategyRemainingLocked(strategyID string, ts time.Time) float64 {
	vm.rollIfNeededLocked(ts)
	allocation, ok := vm.cfg.Allocations[strategyID]
	if !ok {
		allocation = 1.0
	}
	remaining := vm.DailyTarget()*allocation - vm.strategyVolume[strategyID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ComputeSize 计算下单数量：风险定量和剩余成交额配额二者取小。
// atr/k/price 非正或预期剩余笔数 <= 0 时返回 0。
func (vm *VolumeManager) ComputeSize(strategyID string, riskPct, equity, atr, k float64, expectedTradesLeft int, price float64, ts time.Time) float64 {
	if atr <= 0 || k <= 0 || price <= 0 || expectedTradesLeft <= 0 {
		return 0
	}

	vm.mu.Lock()
	remaining := vm.strategyRemainingLocked(strategyID, ts)
	vm.mu.Unlock()

	baseSize := (riskPct * equity) / (atr * k)
	maxSize := (remaining / float64(expectedTradesLeft)) / price
	if baseSize < maxSize {
		return baseSize
	}
	return maxSize
}
