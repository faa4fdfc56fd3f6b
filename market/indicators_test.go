package market

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 5)
	if !ok || !almostEqual(v, 3) {
		t.Fatalf("SMA = %v ok=%v, want 3 true", v, ok)
	}

	// 只取最后 period 个值
	v, ok = SMA([]float64{100, 1, 2, 3}, 3)
	if !ok || !almostEqual(v, 2) {
		t.Fatalf("SMA tail = %v ok=%v, want 2 true", v, ok)
	}

	if _, ok := SMA([]float64{1, 2}, 3); ok {
		t.Fatal("SMA with insufficient data should return ok=false")
	}
	if _, ok := SMA(nil, 0); ok {
		t.Fatal("SMA with zero period should return ok=false")
	}
}

func TestEMA(t *testing.T) {
	// 种子 = 窗口第一个值 3，k = 0.5：3 → 3.5 → 4.25
	v, ok := EMA([]float64{1, 2, 3, 4, 5}, 3)
	if !ok || !almostEqual(v, 4.25) {
		t.Fatalf("EMA = %v ok=%v, want 4.25 true", v, ok)
	}

	if _, ok := EMA([]float64{1, 2}, 3); ok {
		t.Fatal("EMA with insufficient data should return ok=false")
	}
}

func TestATR(t *testing.T) {
	highs := []float64{11, 11, 11, 11, 11}
	lows := []float64{9, 9, 9, 9, 9}
	closes := []float64{10, 10, 10, 10, 10}

	v, ok := ATR(highs, lows, closes, 3)
	if !ok || !almostEqual(v, 2) {
		t.Fatalf("ATR = %v ok=%v, want 2 true", v, ok)
	}

	// period+1 根K线是硬性要求
	if _, ok := ATR(highs[:3], lows[:3], closes[:3], 3); ok {
		t.Fatal("ATR with period candles (no previous close) should return ok=false")
	}
}

func TestVWAP(t *testing.T) {
	v, ok := VWAP([]float64{10, 20}, []float64{1, 3})
	if !ok || !almostEqual(v, 17.5) {
		t.Fatalf("VWAP = %v ok=%v, want 17.5 true", v, ok)
	}

	if _, ok := VWAP([]float64{10}, []float64{0}); ok {
		t.Fatal("VWAP with zero total volume should return ok=false")
	}
	if _, ok := VWAP([]float64{10, 20}, []float64{1}); ok {
		t.Fatal("VWAP with mismatched lengths should return ok=false")
	}
}

func TestBollingerBands(t *testing.T) {
	// 常数序列：标准差为 0，三条带重合
	lower, middle, upper, ok := BollingerBands([]float64{5, 5, 5, 5}, 4, 2)
	if !ok || !almostEqual(lower, 5) || !almostEqual(middle, 5) || !almostEqual(upper, 5) {
		t.Fatalf("BollingerBands(const) = %v/%v/%v ok=%v, want 5/5/5 true", lower, middle, upper, ok)
	}

	// [2,4,4,4,5,5,7,9] 的总体标准差为 2
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	lower, middle, upper, ok = BollingerBands(values, 8, 2)
	if !ok || !almostEqual(middle, 5) || !almostEqual(lower, 1) || !almostEqual(upper, 9) {
		t.Fatalf("BollingerBands = %v/%v/%v ok=%v, want 1/5/9 true", lower, middle, upper, ok)
	}
}

func TestRSI(t *testing.T) {
	// 只涨不跌 → 100
	v, ok := RSI([]float64{1, 2, 3, 4, 5}, 4)
	if !ok || !almostEqual(v, 100) {
		t.Fatalf("RSI(all gains) = %v ok=%v, want 100 true", v, ok)
	}

	// 涨跌相等 → 50
	v, ok = RSI([]float64{10, 11, 10, 11, 10}, 4)
	if !ok || !almostEqual(v, 50) {
		t.Fatalf("RSI(balanced) = %v ok=%v, want 50 true", v, ok)
	}

	// 需要 period+1 个值
	if _, ok := RSI([]float64{1, 2, 3, 4}, 4); ok {
		t.Fatal("RSI with insufficient data should return ok=false")
	}
}
