package market

import "math"

// 指标库：对价格/成交量序列的无状态数值计算。
// 所有函数在数据不足时返回 ok=false，调用方必须视为"无信号"而不是错误。

// SMA 简单移动平均（取序列最后 period 个值）
func SMA(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA 指数移动平均，用窗口第一个值作为种子
func EMA(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := values[len(values)-period]
	for _, v := range values[len(values)-period+1:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// ATR 平均真实波幅（需要 period+1 根K线才能取到前收盘价）
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || len(highs) < period+1 || len(lows) < period+1 || n < period+1 {
		return 0, false
	}
	sum := 0.0
	for i := n - period; i < n; i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		sum += tr
	}
	return sum / float64(period), true
}

// VWAP 成交量加权平均价；总成交量为 0 时视为数据不足
func VWAP(prices, volumes []float64) (float64, bool) {
	if len(prices) == 0 || len(volumes) == 0 || len(prices) != len(volumes) {
		return 0, false
	}
	totalVolume := 0.0
	weighted := 0.0
	for i, p := range prices {
		totalVolume += volumes[i]
		weighted += p * volumes[i]
	}
	if totalVolume == 0 {
		return 0, false
	}
	return weighted / totalVolume, true
}

// BollingerBands 布林带，返回 lower/middle/upper
func BollingerBands(values []float64, period int, stdMult float64) (lower, middle, upper float64, ok bool) {
	if len(values) < period || period <= 0 {
		return 0, 0, 0, false
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	return mean - stdMult*std, mean, mean + stdMult*std, true
}

// RSI 相对强弱指数（简单平均，无 Wilder 平滑）
func RSI(values []float64, period int) (float64, bool) {
	if len(values) < period+1 || period <= 0 {
		return 0, false
	}
	gain := 0.0
	loss := 0.0
	n := len(values)
	for i := n - period; i < n; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}
