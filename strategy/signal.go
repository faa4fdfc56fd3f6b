// Package strategy 实现三个独立的信号生成器。
// 每个策略都是纯函数：输入K线历史和仓位大小，输出可选的交易信号，
// 数据不足时一律返回"无信号"，绝不报错。
package strategy

import (
	"time"

	"tribot/market"
)

// 策略标识
const (
	IDTrend   = "trend"   // 趋势突破（1h）
	IDScalp   = "scalp"   // 均值回归（5m）
	IDCandle3 = "candle3" // 三连K动量（3m）
	IDTest    = "test"    // 启动自检用的测试单，不参与派发
)

// AllIDs 全部策略标识（固定顺序）
func AllIDs() []string {
	return []string{IDTrend, IDScalp, IDCandle3}
}

// Side 交易方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向（平仓时使用）
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Signal 策略产生的交易信号，创建后不可变
type Signal struct {
	Symbol     string         `json:"symbol"`
	StrategyID string         `json:"strategy_id"`
	Side       Side           `json:"side"`
	Timestamp  time.Time      `json:"timestamp"`
	Price      float64        `json:"price"`
	StopLoss   float64        `json:"stop_loss"`
	TakeProfit float64        `json:"take_profit,omitempty"`
	HasTarget  bool           `json:"has_target"`
	Size       float64        `json:"size"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Strategy 信号生成器接口
type Strategy interface {
	// ID 返回策略标识
	ID() string
	// GenerateSignal 根据K线历史生成信号；无信号返回 nil
	GenerateSignal(candles []market.Kline, size float64, symbol string, ts time.Time) *Signal
}
