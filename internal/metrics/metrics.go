// Package metrics computes the performance and risk statistics reported
// in a BacktestResult: capital growth, drawdown, risk-adjusted ratios,
// trade statistics, streaks, and temporal buckets (spec §4.J).
//
// Generalized from standalone CalculateSharpeRatio/CalculateMaxDrawdown/
// CalculateWinRate/CalculateProfitFactor helpers into a cohesive Compute
// pass over decimal.Decimal trades and an equity curve, with profit
// factor, streaks, and bucketing added.
package metrics

import (
	"math"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

var madridLocation = mustLoadLocation("Europe/Madrid")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Compute derives the full BacktestResult statistics (minus ID/timestamps,
// which the caller owns) from the trade list and equity curve produced by
// a simulation run.
func Compute(initialCapital decimal.Decimal, trades []types.Trade, equityCurve []types.EquityPoint) (types.CapitalSummary, types.TradeSummary, types.DrawdownSummary, types.RiskSummary, types.TemporalBuckets, []float64) {
	capital := capitalSummary(initialCapital, equityCurve)
	tradeSummary := tradeSummary(trades)
	drawdown := drawdownSummary(equityCurve)
	returns := DailyReturns(equityCurve)
	risk := riskSummary(returns, capital.CAGR, drawdown.MaxDrawdownPercent)
	temporal := temporalBuckets(trades)
	return capital, tradeSummary, drawdown, risk, temporal, returns
}

func capitalSummary(initial decimal.Decimal, equityCurve []types.EquityPoint) types.CapitalSummary {
	final := initial
	var startTS, endTS time.Time
	if len(equityCurve) > 0 {
		final = equityCurve[len(equityCurve)-1].Equity
		startTS = equityCurve[0].Timestamp
		endTS = equityCurve[len(equityCurve)-1].Timestamp
	}

	totalReturn := final.Sub(initial)
	var totalReturnPct decimal.Decimal
	if !initial.IsZero() {
		totalReturnPct = totalReturn.Div(initial).Mul(decimal.NewFromInt(100))
	}

	years := endTS.Sub(startTS).Hours() / (24 * 365.25)
	var cagr decimal.Decimal
	if years > 0 && initial.GreaterThan(decimal.Zero) && final.GreaterThan(decimal.Zero) {
		ratio, _ := final.Div(initial).Float64()
		cagrFloat := math.Pow(ratio, 1.0/years) - 1
		cagr = decimal.NewFromFloat(cagrFloat * 100)
	}

	return types.CapitalSummary{
		Initial:            initial,
		Final:              final,
		TotalReturn:        totalReturn,
		TotalReturnPercent: totalReturnPct,
		CAGR:               cagr,
	}
}

func tradeSummary(trades []types.Trade) types.TradeSummary {
	var s types.TradeSummary
	var grossWin, grossLoss decimal.Decimal
	var winStreak, lossStreak int

	for _, tr := range trades {
		s.TotalTrades++
		if tr.PnL.GreaterThan(decimal.Zero) {
			s.WinningTrades++
			grossWin = grossWin.Add(tr.PnL)
			if tr.PnL.GreaterThan(s.LargestWin) {
				s.LargestWin = tr.PnL
			}
			winStreak++
			lossStreak = 0
		} else if tr.PnL.LessThan(decimal.Zero) {
			s.LosingTrades++
			grossLoss = grossLoss.Add(tr.PnL.Abs())
			if tr.PnL.LessThan(s.LargestLoss) {
				s.LargestLoss = tr.PnL
			}
			lossStreak++
			winStreak = 0
		} else {
			winStreak, lossStreak = 0, 0
		}
		if winStreak > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = winStreak
		}
		if lossStreak > s.MaxConsecutiveLoss {
			s.MaxConsecutiveLoss = lossStreak
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).Div(decimal.NewFromInt(int64(s.TotalTrades))).Mul(decimal.NewFromInt(100))
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossWin.Div(decimal.NewFromInt(int64(s.WinningTrades)))
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(s.LosingTrades))).Neg()
	}
	if grossLoss.GreaterThan(decimal.Zero) {
		s.ProfitFactor = grossWin.Div(grossLoss)
	} else if grossWin.GreaterThan(decimal.Zero) {
		// decimal.Decimal has no infinity; profitFactorInfinite stands in
		// for the no-losses case.
		s.ProfitFactor = profitFactorInfinite
	}

	return s
}

func drawdownSummary(equityCurve []types.EquityPoint) types.DrawdownSummary {
	if len(equityCurve) == 0 {
		return types.DrawdownSummary{}
	}

	peak := equityCurve[0].Equity
	var maxDD, sumDD decimal.Decimal
	ddPoints := 0
	var maxDuration, currentDuration int

	for _, p := range equityCurve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
			if currentDuration > maxDuration {
				maxDuration = currentDuration
			}
			currentDuration = 0
			continue
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(p.Equity).Div(peak).Mul(decimal.NewFromInt(100))
			sumDD = sumDD.Add(dd)
			ddPoints++
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
		currentDuration++
	}
	if currentDuration > maxDuration {
		maxDuration = currentDuration
	}

	var avgDD decimal.Decimal
	if ddPoints > 0 {
		avgDD = sumDD.Div(decimal.NewFromInt(int64(ddPoints)))
	}

	return types.DrawdownSummary{
		MaxDrawdownPercent:      maxDD,
		AvgDrawdownPercent:      avgDD,
		MaxDrawdownDurationDays: maxDuration,
	}
}

// DailyReturns computes the percent-change series of the equity curve.
func DailyReturns(equityCurve []types.EquityPoint) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1].Equity
		if prev.IsZero() {
			continue
		}
		change, _ := equityCurve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, change)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		sumSq += (x - m) * (x - m)
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func downsideDev(xs []float64) float64 {
	var negatives []float64
	for _, x := range xs {
		if x < 0 {
			negatives = append(negatives, x)
		}
	}
	if len(negatives) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range negatives {
		sumSq += x * x
	}
	return math.Sqrt(sumSq / float64(len(negatives)))
}

const tradingDaysPerYear = 252

// profitFactorInfinite stands in for +Inf (spec: profit_factor = +Inf
// when there are winning trades and zero losses); shopspring's Decimal
// has no representable infinity.
var profitFactorInfinite = decimal.NewFromInt(1 << 40)

func riskSummary(returns []float64, cagr, maxDrawdownPercent decimal.Decimal) types.RiskSummary {
	avg := mean(returns)
	sd := stdDev(returns)
	downside := downsideDev(returns)

	var sharpe, sortino float64
	if sd > 0 {
		sharpe = (avg / sd) * math.Sqrt(tradingDaysPerYear)
	}
	if downside > 0 {
		sortino = (avg / downside) * math.Sqrt(tradingDaysPerYear)
	}

	cagrFloat, _ := cagr.Float64()
	maxDDFloat, _ := maxDrawdownPercent.Float64()
	var calmar float64
	if maxDDFloat > 0 {
		calmar = cagrFloat / maxDDFloat
	}

	return types.RiskSummary{
		SharpeRatio:          decimal.NewFromFloat(sharpe),
		SortinoRatio:         decimal.NewFromFloat(sortino),
		CalmarRatio:          decimal.NewFromFloat(calmar),
		MAR:                  decimal.NewFromFloat(calmar),
		AnnualizedVolatility: decimal.NewFromFloat(sd * math.Sqrt(tradingDaysPerYear) * 100),
	}
}

// sessionFor classifies an exit timestamp into the Europe/Madrid trading
// session it falls within: us_open (15:30-18:00) takes priority over any
// overlapping window, then eu_open (08:00-12:00), eu_pm (12:00-16:00),
// us_pm (18:00-22:00), else "other".
func sessionFor(ts time.Time) string {
	madrid := ts.In(madridLocation)
	minutes := madrid.Hour()*60 + madrid.Minute()
	switch {
	case minutes >= 15*60+30 && minutes < 18*60:
		return "us_open"
	case minutes >= 8*60 && minutes < 12*60:
		return "eu_open"
	case minutes >= 12*60 && minutes < 16*60:
		return "eu_pm"
	case minutes >= 18*60 && minutes < 22*60:
		return "us_pm"
	default:
		return "other"
	}
}

// intradayBucketFor classifies an exit timestamp's UTC hour into morning
// [07,12), afternoon [12,18), else evening.
func intradayBucketFor(ts time.Time) string {
	h := ts.UTC().Hour()
	switch {
	case h >= 7 && h < 12:
		return "morning"
	case h >= 12 && h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func temporalBuckets(trades []types.Trade) types.TemporalBuckets {
	byDay := make(map[string][]types.Trade)
	byHour := make(map[string][]types.Trade)
	bySession := make(map[string][]types.Trade)
	byRegime := make(map[string][]types.Trade)

	for _, tr := range trades {
		byDay[tr.DayOfWeek] = append(byDay[tr.DayOfWeek], tr)
		byHour[intradayBucketFor(tr.ExitTS)] = append(byHour[intradayBucketFor(tr.ExitTS)], tr)
		bySession[sessionFor(tr.ExitTS)] = append(bySession[sessionFor(tr.ExitTS)], tr)
		byRegime[string(tr.Regime)] = append(byRegime[string(tr.Regime)], tr)
	}

	return types.TemporalBuckets{
		ByDay:     toBucketStats(byDay),
		ByHour:    toBucketStats(byHour),
		BySession: toBucketStats(bySession),
		ByRegime:  toBucketStats(byRegime),
	}
}

func toBucketStats(grouped map[string][]types.Trade) map[string]types.BucketStats {
	out := make(map[string]types.BucketStats, len(grouped))
	for key, trades := range grouped {
		s := tradeSummary(trades)
		var totalPnL decimal.Decimal
		for _, tr := range trades {
			totalPnL = totalPnL.Add(tr.PnL)
		}
		var avgPnL decimal.Decimal
		if len(trades) > 0 {
			avgPnL = totalPnL.Div(decimal.NewFromInt(int64(len(trades))))
		}
		out[key] = types.BucketStats{
			TotalTrades:  s.TotalTrades,
			WinRate:      s.WinRate,
			ProfitFactor: s.ProfitFactor,
			TotalPnL:     totalPnL,
			AvgPnL:       avgPnL,
		}
	}
	return out
}
