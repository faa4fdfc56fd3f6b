package strategy

import (
	"math"
	"time"

	"tribot/market"
)

// TrendBreakoutConfig 趋势突破策略参数
type TrendBreakoutConfig struct {
	Lookback  int     // 突破回看窗口
	EMAFast   int     // 快线周期
	EMASlow   int     // 慢线周期
	ATRPeriod int
	VolumeSMA int     // 成交量均线周期
	ATRK      float64 // 止损/止盈的ATR倍数
	TrailATRK float64 // 追踪止损倍数（写入metadata，由退出逻辑消费）
	MinEMAGap float64 // 快慢线最小间距（比例）
}

// DefaultTrendBreakoutConfig 默认参数
func DefaultTrendBreakoutConfig() TrendBreakoutConfig {
	return TrendBreakoutConfig{
		Lookback:  20,
		EMAFast:   50,
		EMASlow:   200,
		ATRPeriod: 14,
		VolumeSMA: 20,
		ATRK:      2.0,
		TrailATRK: 1.5,
		MinEMAGap: 0.005,
	}
}

// TrendBreakout EMA趋势过滤 + 区间突破 + 成交量确认
type TrendBreakout struct {
	cfg TrendBreakoutConfig
}

// NewTrendBreakout 创建趋势突破策略
func NewTrendBreakout(cfg TrendBreakoutConfig) *TrendBreakout {
	return &TrendBreakout{cfg: cfg}
}

func (s *TrendBreakout) ID() string { return IDTrend }

func (s *TrendBreakout) GenerateSignal(candles []market.Kline, size float64, symbol string, ts time.Time) *Signal {
	cfg := s.cfg
	minLen := cfg.EMASlow
	if cfg.Lookback > minLen {
		minLen = cfg.Lookback
	}
	if len(candles) < minLen+2 {
		return nil
	}

	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	volumes := market.Volumes(candles)

	emaFast, okFast := market.EMA(closes, cfg.EMAFast)
	emaSlow, okSlow := market.EMA(closes, cfg.EMASlow)
	atr, okATR := market.ATR(highs, lows, closes, cfg.ATRPeriod)
	volSMA, okVolSMA := market.SMA(volumes, cfg.VolumeSMA)
	if !okFast || !okSlow || !okATR {
		return nil
	}

	// 快慢线间距太小说明没有趋势，直接放弃
	emaGap := math.Abs(emaFast-emaSlow) / emaSlow
	if emaGap < cfg.MinEMAGap {
		return nil
	}

	// 突破窗口不含当前K线，否则收盘价永远不可能高于窗口最高点
	windowHighs := highs[len(highs)-1-cfg.Lookback : len(highs)-1]
	windowLows := lows[len(lows)-1-cfg.Lookback : len(lows)-1]
	recentHigh := windowHighs[0]
	recentLow := windowLows[0]
	for _, h := range windowHighs {
		if h > recentHigh {
			recentHigh = h
		}
	}
	for _, l := range windowLows {
		if l < recentLow {
			recentLow = l
		}
	}

	lastClose := closes[len(closes)-1]
	// 成交量均线不可用时不作为否决条件
	volumeOK := !okVolSMA || volumes[len(volumes)-1] > volSMA

	if emaFast > emaSlow && lastClose > recentHigh && volumeOK {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideBuy,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   lastClose - cfg.ATRK*atr,
			TakeProfit: lastClose + cfg.ATRK*atr,
			HasTarget:  true,
			Size:       size,
			Reason:     "trend_breakout_long",
			Metadata:   map[string]any{"trail_atr_k": cfg.TrailATRK},
		}
	}

	if emaFast < emaSlow && lastClose < recentLow && volumeOK {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideSell,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   lastClose + cfg.ATRK*atr,
			TakeProfit: lastClose - cfg.ATRK*atr,
			HasTarget:  true,
			Size:       size,
			Reason:     "trend_breakout_short",
			Metadata:   map[string]any{"trail_atr_k": cfg.TrailATRK},
		}
	}

	return nil
}
