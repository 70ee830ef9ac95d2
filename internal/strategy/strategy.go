// Package strategy evaluates a bar-subset into a directional Signal using
// a multi-factor additive scoring scheme over the indicator kernels.
//
// Adapted from a registry of eight independent strategies (momentum,
// mean-reversion, breakout, trend-following, RSI-divergence, VWAP-
// reversion, grid, DCA) down to the single multi-factor evaluator spec
// §4.C describes; the per-bar buffer/parameter idiom of the strategy
// registry is kept, the one-strategy-per-signal-type model is not.
package strategy

import (
	"time"

	"github.com/juanpimr2/intraday-engine/internal/indicators"
	"github.com/juanpimr2/intraday-engine/internal/regime"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// Config holds the evaluator's tunable parameters (spec §4.C, §6).
type Config struct {
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	SMAShort int
	SMALong  int

	MomentumPeriod int

	ATRPeriod      int
	ATRMin         float64
	ATRMax         float64
	ATROptimalLow  float64
	ATROptimalHigh float64

	ADXPeriod   int
	ADXEnabled  bool
	ADXMinTrend float64
	ADXStrong   float64

	MinSignalsToTrade int
	MinConfidence     float64

	MTFEnabled bool
}

// DefaultConfig returns the default evaluator parameters.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:         14,
		RSIOversold:       30,
		RSIOverbought:     70,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		SMAShort:          10,
		SMALong:           30,
		MomentumPeriod:    10,
		ATRPeriod:         14,
		ATRMin:            0.5,
		ATRMax:            5.0,
		ATROptimalLow:     1.0,
		ATROptimalHigh:    3.0,
		ADXPeriod:         14,
		ADXEnabled:        true,
		ADXMinTrend:       20,
		ADXStrong:         40,
		MinSignalsToTrade: 2,
		MinConfidence:     0,
		MTFEnabled:        false,
	}
}

// Evaluator scores a bar-subset into a Signal.
type Evaluator struct {
	config  Config
	regime  *regime.Detector
}

// NewEvaluator creates an evaluator bound to a regime detector for the
// regime-at-evaluation field of the emitted Signal.
func NewEvaluator(config Config, regimeDetector *regime.Detector) *Evaluator {
	return &Evaluator{config: config, regime: regimeDetector}
}

// Evaluate scores bars (ascending by timestamp, all with ts <= the
// evaluation timestamp, i.e. the last bar's timestamp) for epic and
// returns one Signal. slowBars, if non-nil and MTF is enabled, is the
// slower-timeframe series used for multi-timeframe confirmation.
func (e *Evaluator) Evaluate(epic string, bars []types.Bar, slowBars []types.Bar) types.Signal {
	now := bars[len(bars)-1].Timestamp
	currentPrice := bars[len(bars)-1].Close
	regimeLabel := types.RegimeLateral
	if e.regime != nil {
		regimeLabel = e.regime.At(epic, now)
	}

	neutral := func(reason string) types.Signal {
		return types.Signal{
			Epic:         epic,
			Timestamp:    now,
			Direction:    types.DirectionNeutral,
			Confidence:   0,
			CurrentPrice: currentPrice,
			Reasons:      []string{reason},
			Regime:       regimeLabel,
		}
	}

	// 1. Sufficiency gate.
	if len(bars) < e.config.SMALong {
		return neutral("insufficient data")
	}

	closes := make([]decimal.Decimal, len(bars))
	highs := make([]decimal.Decimal, len(bars))
	lows := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	atrPct := indicators.ATRPercent(highs, lows, closes, e.config.ATRPeriod)

	// 2. Volatility gate.
	if atrPct < e.config.ATRMin || atrPct > e.config.ATRMax {
		return neutral("volatility out of range")
	}

	adxResult := indicators.ADX(highs, lows, closes, e.config.ADXPeriod)

	// 3. Trend-strength gate (optional).
	if e.config.ADXEnabled && adxResult.ADX < e.config.ADXMinTrend {
		return neutral("insufficient trend strength")
	}

	smaShort := indicators.SMA(closes, e.config.SMAShort)
	smaLong := indicators.SMA(closes, e.config.SMALong)
	rsi := indicators.RSI(closes, e.config.RSIPeriod)
	macd := indicators.MACD(closes, e.config.MACDFast, e.config.MACDSlow, e.config.MACDSignal)
	momentum := indicators.Momentum(closes, e.config.MomentumPeriod)
	lastClose, _ := closes[len(closes)-1].Float64()

	buyScore, sellScore := 0, 0
	var reasons []string

	addReason := func(format string, buy bool) {
		if buy {
			reasons = append(reasons, format+" (buy)")
		} else {
			reasons = append(reasons, format+" (sell)")
		}
	}

	// 4. Scoring.
	if smaShort > smaLong && lastClose > smaLong {
		buyScore += 2
		addReason("SMA short above long, price above long", true)
	} else if smaShort < smaLong && lastClose < smaLong {
		sellScore += 2
		addReason("SMA short below long, price below long", false)
	}

	if rsi < e.config.RSIOversold {
		buyScore += 2
		addReason("RSI oversold", true)
	} else if rsi > e.config.RSIOverbought {
		sellScore += 2
		addReason("RSI overbought", false)
	}

	if macd.MACD > macd.Signal && macd.Histogram > 0 {
		buyScore += 2
		addReason("MACD bullish crossover", true)
	} else if macd.MACD < macd.Signal && macd.Histogram < 0 {
		sellScore += 2
		addReason("MACD bearish crossover", false)
	}

	if momentum > 2 {
		buyScore++
		addReason("positive momentum", true)
	} else if momentum < -2 {
		sellScore++
		addReason("negative momentum", false)
	}

	if lastClose > smaShort && lastClose > smaLong {
		buyScore++
		addReason("price above both SMAs", true)
	} else if lastClose < smaShort && lastClose < smaLong {
		sellScore++
		addReason("price below both SMAs", false)
	}

	if e.config.ADXEnabled && adxResult.ADX > e.config.ADXMinTrend {
		if adxResult.PlusDI > adxResult.MinusDI {
			buyScore += 2
			addReason("+DI leads -DI", true)
			if adxResult.ADX > e.config.ADXStrong {
				buyScore++
			}
		} else {
			sellScore += 2
			addReason("-DI leads +DI", false)
			if adxResult.ADX > e.config.ADXStrong {
				sellScore++
			}
		}
	}

	if atrPct >= e.config.ATROptimalLow && atrPct <= e.config.ATROptimalHigh {
		if buyScore > sellScore {
			buyScore++
		} else if sellScore > buyScore {
			sellScore++
		}
	}

	snapshot := types.IndicatorSnapshot{
		RSI:        rsi,
		MACD:       macd.MACD,
		MACDSignal: macd.Signal,
		MACDHist:   macd.Histogram,
		SMAShort:   smaShort,
		SMALong:    smaLong,
		Momentum:   momentum,
		ATRPercent: atrPct,
		ADX:        adxResult.ADX,
		PlusDI:     adxResult.PlusDI,
		MinusDI:    adxResult.MinusDI,
	}

	// 5. Decision.
	maxScore := buyScore
	if sellScore > maxScore {
		maxScore = sellScore
	}
	if maxScore < e.config.MinSignalsToTrade || buyScore == sellScore {
		return types.Signal{
			Epic:         epic,
			Timestamp:    now,
			Direction:    types.DirectionNeutral,
			Confidence:   0,
			CurrentPrice: currentPrice,
			Reasons:      append(reasons, "no decisive direction"),
			Indicators:   snapshot,
			Regime:       regimeLabel,
		}
	}

	direction := types.DirectionBuy
	score := buyScore
	if sellScore > buyScore {
		direction = types.DirectionSell
		score = sellScore
	}
	confidence := float64(score) / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	// 6. MTF confirmation (optional).
	if e.config.MTFEnabled && len(slowBars) >= e.config.SMALong {
		confidence, direction, reasons = e.confirmMTF(slowBars, direction, confidence, reasons)
	}

	if direction == types.DirectionNeutral || confidence < e.config.MinConfidence {
		return types.Signal{
			Epic:         epic,
			Timestamp:    now,
			Direction:    types.DirectionNeutral,
			Confidence:   0,
			CurrentPrice: currentPrice,
			Reasons:      reasons,
			Indicators:   snapshot,
			Regime:       regimeLabel,
		}
	}

	return types.Signal{
		Epic:         epic,
		Timestamp:    now,
		Direction:    direction,
		Confidence:   confidence,
		CurrentPrice: currentPrice,
		Reasons:      reasons,
		Indicators:   snapshot,
		Regime:       regimeLabel,
	}
}

// confirmMTF requires alignment with the slower timeframe: BUY needs slow
// SMA-short > SMA-long and slow RSI > 50 (mirrored for SELL). Misalignment
// downgrades to NEUTRAL; perfect alignment scales confidence by 1.2,
// capped at 1.0.
func (e *Evaluator) confirmMTF(slowBars []types.Bar, direction types.Direction, confidence float64, reasons []string) (float64, types.Direction, []string) {
	slowCloses := make([]decimal.Decimal, len(slowBars))
	for i, b := range slowBars {
		slowCloses[i] = b.Close
	}
	slowSMAShort := indicators.SMA(slowCloses, e.config.SMAShort)
	slowSMALong := indicators.SMA(slowCloses, e.config.SMALong)
	slowRSI := indicators.RSI(slowCloses, e.config.RSIPeriod)

	aligned := false
	if direction == types.DirectionBuy {
		aligned = slowSMAShort > slowSMALong && slowRSI > 50
	} else if direction == types.DirectionSell {
		aligned = slowSMAShort < slowSMALong && slowRSI < 50
	}

	if !aligned {
		return 0, types.DirectionNeutral, append(reasons, "MTF misalignment")
	}

	confidence *= 1.2
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, direction, append(reasons, "MTF confirmed")
}

// RegimeFiltered reports whether a signal must be blocked because its
// regime is in the configured block set (spec §4.I step 2).
func RegimeFiltered(sig types.Signal, blocked types.RegimeLabel, enabled bool) bool {
	return enabled && sig.Regime == blocked
}

// EvaluationWindow trims bars to the strict no-look-ahead subset with
// timestamp <= asOf, returning the slice (shares backing array, no copy).
func EvaluationWindow(bars []types.Bar, asOf time.Time) []types.Bar {
	end := 0
	for end < len(bars) && !bars[end].Timestamp.After(asOf) {
		end++
	}
	return bars[:end]
}
