// Package indicators provides pure, deterministic technical-indicator
// kernels over a close-price or OHLC bar series. Every function here is
// side-effect free: given identical input it returns identical output, and
// an undersized series yields a documented neutral value rather than an error.
package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// RSI computes the Wilder-style relative strength index: average gain/loss
// seeded on the first period deltas, then Wilder-smoothed through the rest
// of the series. Returns 50 (neutral) if fewer than period+1 closes are
// available.
func RSI(closes []decimal.Decimal, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta, _ := closes[i].Sub(closes[i-1]).Float64()
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta, _ := closes[i].Sub(closes[i-1]).Float64()
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ema computes the standard exponential moving average of values, seeded
// with the simple mean of the first period values.
func ema(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	mult := 2.0 / float64(period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	out[period-1] = seed
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*mult + out[i-1]
	}
	return out
}

// EMA returns the last value of the exponential moving average over
// period, or 0 if there is not enough data.
func EMA(closes []decimal.Decimal, period int) float64 {
	values := toFloats(closes)
	series := ema(values, period)
	if series == nil {
		return 0
	}
	return series[len(series)-1]
}

// SMA returns the simple mean of the last n closes, or 0 if fewer than n are available.
func SMA(closes []decimal.Decimal, n int) float64 {
	if n <= 0 || len(closes) < n {
		return 0
	}
	sum := decimal.Zero
	for _, c := range closes[len(closes)-n:] {
		sum = sum.Add(c)
	}
	v, _ := sum.Div(decimal.NewFromInt(int64(n))).Float64()
	return v
}

// MACDResult is the (macd, signal, histogram) triplet.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the EMA(fast)-EMA(slow) difference and its signal-period EMA.
// Returns zeros if there are not enough closes for the slow+signal window.
func MACD(closes []decimal.Decimal, fast, slow, signal int) MACDResult {
	values := toFloats(closes)
	if len(values) < slow+signal {
		return MACDResult{}
	}

	fastEMA := ema(values, fast)
	slowEMA := ema(values, slow)
	if fastEMA == nil || slowEMA == nil {
		return MACDResult{}
	}

	macdLine := make([]float64, len(values))
	for i := range macdLine {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macdLine[i] = math.NaN()
			continue
		}
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	// Trim the leading NaNs (from the slow EMA's warm-up) before smoothing.
	start := slow - 1
	trimmed := macdLine[start:]
	signalEMA := ema(trimmed, signal)
	if signalEMA == nil {
		return MACDResult{}
	}

	lastMACD := trimmed[len(trimmed)-1]
	lastSignal := signalEMA[len(signalEMA)-1]
	return MACDResult{
		MACD:      lastMACD,
		Signal:    lastSignal,
		Histogram: lastMACD - lastSignal,
	}
}

// Momentum returns the percent change between the last close and the close
// n bars earlier, or 0 if there are not enough bars.
func Momentum(closes []decimal.Decimal, n int) float64 {
	if n <= 0 || len(closes) <= n {
		return 0
	}
	last := closes[len(closes)-1]
	prior := closes[len(closes)-1-n]
	if prior.IsZero() {
		return 0
	}
	pct, _ := last.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// trueRange is the max of high-low, |high-prevClose|, |low-prevClose|.
func trueRange(high, low, prevClose decimal.Decimal) decimal.Decimal {
	hl := high.Sub(low)
	hc := high.Sub(prevClose).Abs()
	lc := low.Sub(prevClose).Abs()
	return decimal.Max(hl, decimal.Max(hc, lc))
}

// ATR computes the mean of the true-range series over the last period bars.
// Returns 0 if fewer than period+1 bars are available.
func ATR(highs, lows, closes []decimal.Decimal, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}
	n := len(closes)
	sum := decimal.Zero
	for i := n - period; i < n; i++ {
		sum = sum.Add(trueRange(highs[i], lows[i], closes[i-1]))
	}
	v, _ := sum.Div(decimal.NewFromInt(int64(period))).Float64()
	return v
}

// ATRPercent is ATR / close * 100, normalized for cross-asset comparability.
func ATRPercent(highs, lows, closes []decimal.Decimal, period int) float64 {
	atr := ATR(highs, lows, closes, period)
	if len(closes) == 0 {
		return 0
	}
	last, _ := closes[len(closes)-1].Float64()
	if last == 0 {
		return 0
	}
	return atr / last * 100
}

// ADXResult is the (ADX, +DI, -DI) triplet.
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX computes Wilder-smoothed +DM/-DM divided by ATR, then DX smoothed to
// ADX. Returns zeros if there is not enough data for two smoothing windows.
func ADX(highs, lows, closes []decimal.Decimal, period int) ADXResult {
	n := len(closes)
	if period <= 0 || n < period*2+1 {
		return ADXResult{}
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove, _ := highs[i].Sub(highs[i-1]).Float64()
		downMove, _ := lows[i-1].Sub(lows[i]).Float64()
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i], _ = trueRange(highs[i], lows[i], closes[i-1]).Float64()
	}

	wilderSmooth := func(values []float64, period int) []float64 {
		out := make([]float64, len(values))
		seed := 0.0
		for i := 1; i <= period; i++ {
			seed += values[i]
		}
		out[period] = seed
		for i := period + 1; i < len(values); i++ {
			out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
		}
		return out
	}

	smoothPlusDM := wilderSmooth(plusDM, period)
	smoothMinusDM := wilderSmooth(minusDM, period)
	smoothTR := wilderSmooth(tr, period)

	dx := make([]float64, n)
	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothTR[i] == 0 {
			continue
		}
		plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]
		denom := plusDI[i] + minusDI[i]
		if denom == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / denom
	}

	// Smooth DX into ADX over the second period-length window.
	adxStart := period * 2
	if adxStart >= n {
		return ADXResult{}
	}
	adxSeed := 0.0
	for i := period; i < adxStart; i++ {
		adxSeed += dx[i]
	}
	adx := adxSeed / float64(period)
	for i := adxStart; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}

	return ADXResult{ADX: adx, PlusDI: plusDI[n-1], MinusDI: minusDI[n-1]}
}

func toFloats(closes []decimal.Decimal) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i], _ = c.Float64()
	}
	return out
}
