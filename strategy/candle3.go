package strategy

import (
	"time"

	"tribot/market"
)

// Candle3Config 三连K动量策略参数。
// MinATR/MaxATR 用于把信号限制在合适的波动区间内，<=0 表示不限制。
type Candle3Config struct {
	ATRPeriod int
	MinATR    float64
	MaxATR    float64
}

// DefaultCandle3Config 默认参数
func DefaultCandle3Config() Candle3Config {
	return Candle3Config{ATRPeriod: 14}
}

// Candle3 3分钟周期上的三连阳/三连阴动量入场。
// 止损放在第一根K线的开盘价；不设止盈，退出交给持仓监控（止损/计时器）。
type Candle3 struct {
	cfg Candle3Config
}

// NewCandle3 创建三连K策略
func NewCandle3(cfg Candle3Config) *Candle3 {
	return &Candle3{cfg: cfg}
}

func (s *Candle3) ID() string { return IDCandle3 }

func (s *Candle3) GenerateSignal(candles []market.Kline, size float64, symbol string, ts time.Time) *Signal {
	cfg := s.cfg
	minLen := cfg.ATRPeriod
	if minLen < 3 {
		minLen = 3
	}
	if len(candles) < minLen+1 {
		return nil
	}

	atr, ok := market.ATR(market.Highs(candles), market.Lows(candles), market.Closes(candles), cfg.ATRPeriod)
	if !ok {
		return nil
	}
	if cfg.MinATR > 0 && atr < cfg.MinATR {
		return nil
	}
	if cfg.MaxATR > 0 && atr > cfg.MaxATR {
		return nil
	}

	lastThree := candles[len(candles)-3:]
	bull := lastThree[0].Bullish() && lastThree[1].Bullish() && lastThree[2].Bullish()
	bear := lastThree[0].Bearish() && lastThree[1].Bearish() && lastThree[2].Bearish()
	firstOpen := lastThree[0].Open
	lastClose := lastThree[2].Close

	if bull {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideBuy,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   firstOpen,
			Size:       size,
			Reason:     "three_bullish_3m",
		}
	}

	if bear {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideSell,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   firstOpen,
			Size:       size,
			Reason:     "three_bearish_3m",
		}
	}

	return nil
}
