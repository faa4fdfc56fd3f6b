package trader

import (
	"sync"
	"time"
)

// RiskConfig 风控参数
type RiskConfig struct {
	MaxDailyLossPct      float64 // 当日最大亏损占日初权益的比例
	MaxConsecutiveLosses int     // 最大连续亏损笔数
	MaxOrdersPerHour     int     // 每小时最大下单数
	RiskPerTradePct      float64 // 单笔风险占权益的比例（用于仓位计算）
}

// DefaultRiskConfig 默认风控参数
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxDailyLossPct:      0.03,
		MaxConsecutiveLosses: 3,
		MaxOrdersPerHour:     20,
		RiskPerTradePct:      0.005,
	}
}

// RiskManager 按墙上时钟的日/小时key做计数器翻转的风控闸门
type RiskManager struct {
	cfg RiskConfig

	mu                sync.Mutex
	dayKey            string
	equityStart       float64
	realizedPnl       float64
	consecutiveLosses int
	hourKey           string
	ordersThisHour    int
}

// NewRiskManager 创建风控管理器
func NewRiskManager(cfg RiskConfig) *RiskManager {
	now := time.Now().UTC()
	return &RiskManager{
		cfg:     cfg,
		dayKey:  dayID(now),
		hourKey: hourID(now),
	}
}

// Config 返回风控参数
func (rm *RiskManager) Config() RiskConfig { return rm.cfg }

func dayID(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

func hourID(ts time.Time) string {
	return ts.UTC().Format("2006-01-02-15")
}

// StartDay 开始新的交易日：记录日初权益，清零当日盈亏和连亏计数
func (rm *RiskManager) StartDay(equity float64, ts time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.startDayLocked(equity, ts)
}

func (rm *RiskManager) startDayLocked(equity float64, ts time.Time) {
	rm.dayKey = dayID(ts)
	rm.equityStart = equity
	rm.realizedPnl = 0
	rm.consecutiveLosses = 0
}

// RegisterOrder 记录一次下单（小时key变化时先清零小时计数）
func (rm *RiskManager) RegisterOrder(ts time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if key := hourID(ts); key != rm.hourKey {
		rm.hourKey = key
		rm.ordersThisHour = 0
	}
	rm.ordersThisHour++
}

// RegisterPnl 记录一笔已实现盈亏；亏损累计连亏计数，盈利清零
func (rm *RiskManager) RegisterPnl(pnl float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.realizedPnl += pnl
	if pnl < 0 {
		rm.consecutiveLosses++
	} else {
		rm.consecutiveLosses = 0
	}
}

// CanTrade 判断当前是否允许继续开新仓。
// 日key变化时自动开启新交易日；日初权益未建立时采用当前权益作为基准。
func (rm *RiskManager) CanTrade(equity float64, ts time.Time) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if dayID(ts) != rm.dayKey {
		rm.startDayLocked(equity, ts)
	}
	if rm.equityStart <= 0 {
		rm.equityStart = equity
	}

	maxLoss := rm.equityStart * rm.cfg.MaxDailyLossPct
	if -rm.realizedPnl >= maxLoss {
		return false
	}
	if rm.consecutiveLosses >= rm.cfg.MaxConsecutiveLosses {
		return false
	}

	if key := hourID(ts); key != rm.hourKey {
		rm.hourKey = key
		rm.ordersThisHour = 0
	}
	return rm.ordersThisHour < rm.cfg.MaxOrdersPerHour
}
