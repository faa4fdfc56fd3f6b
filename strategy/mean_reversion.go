package strategy

import (
	"math"
	"time"

	"tribot/market"
)

// MeanReversionConfig 均值回归策略参数
type MeanReversionConfig struct {
	BBPeriod       int
	BBStd          float64
	ATRPeriod      int
	RSIPeriod      int
	ATRK           float64
	MaxHoldingBars int  // 写入metadata，由退出逻辑消费
	UseRSI         bool // 关闭后RSI不参与过滤
}

// DefaultMeanReversionConfig 默认参数
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		BBPeriod:       20,
		BBStd:          2.0,
		ATRPeriod:      14,
		RSIPeriod:      14,
		ATRK:           1.5,
		MaxHoldingBars: 12,
		UseRSI:         true,
	}
}

// MeanReversion 布林带 + VWAP + RSI 的超买超卖回归
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion 创建均值回归策略
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg}
}

func (s *MeanReversion) ID() string { return IDScalp }

func (s *MeanReversion) GenerateSignal(candles []market.Kline, size float64, symbol string, ts time.Time) *Signal {
	cfg := s.cfg
	minLen := cfg.BBPeriod
	if cfg.ATRPeriod > minLen {
		minLen = cfg.ATRPeriod
	}
	if cfg.RSIPeriod > minLen {
		minLen = cfg.RSIPeriod
	}
	if len(candles) < minLen+2 {
		return nil
	}

	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	volumes := market.Volumes(candles)

	lower, mid, upper, okBB := market.BollingerBands(closes, cfg.BBPeriod, cfg.BBStd)
	atr, okATR := market.ATR(highs, lows, closes, cfg.ATRPeriod)
	vwap, okVWAP := market.VWAP(closes[len(closes)-cfg.BBPeriod:], volumes[len(volumes)-cfg.BBPeriod:])
	if !okBB || !okATR || !okVWAP {
		return nil
	}

	rsi, okRSI := 0.0, false
	if cfg.UseRSI {
		rsi, okRSI = market.RSI(closes, cfg.RSIPeriod)
	}

	lastClose := closes[len(closes)-1]
	rsiLongOK := !okRSI || rsi < 30
	rsiShortOK := !okRSI || rsi > 70

	if lastClose < lower && lastClose < vwap && rsiLongOK {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideBuy,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   lastClose - cfg.ATRK*atr,
			TakeProfit: math.Min(vwap, mid),
			HasTarget:  true,
			Size:       size,
			Reason:     "mean_reversion_long",
			Metadata:   map[string]any{"max_holding_bars": cfg.MaxHoldingBars},
		}
	}

	if lastClose > upper && lastClose > vwap && rsiShortOK {
		return &Signal{
			Symbol:     symbol,
			StrategyID: s.ID(),
			Side:       SideSell,
			Timestamp:  ts,
			Price:      lastClose,
			StopLoss:   lastClose + cfg.ATRK*atr,
			TakeProfit: math.Max(vwap, mid),
			HasTarget:  true,
			Size:       size,
			Reason:     "mean_reversion_short",
			Metadata:   map[string]any{"max_holding_bars": cfg.MaxHoldingBars},
		}
	}

	return nil
}
