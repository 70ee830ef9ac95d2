// Package position builds, monitors, and closes Positions: stop-loss and
// take-profit computation (static or ATR-adaptive), same-bar exit
// monitoring, and trade stamping at close (spec §4.F).
package position

import (
	"time"

	"github.com/juanpimr2/intraday-engine/internal/indicators"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/juanpimr2/intraday-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

var (
	minSLTPPct = decimal.NewFromFloat(0.01)
	minTPPct   = decimal.NewFromFloat(0.02)
	maxSLPct   = decimal.NewFromFloat(0.10)
	maxTPPct   = decimal.NewFromFloat(0.15)
)

// Manager builds and monitors Positions from Signals.
type Manager struct {
	config types.SLTPConfig
}

// NewManager creates a position manager bound to the SL/TP configuration.
func NewManager(config types.SLTPConfig) *Manager {
	return &Manager{config: config}
}

// clampPct clamps an SL/TP distance fraction to [minSLTPPct, maxPct].
func clampPct(pct, maxPct decimal.Decimal) decimal.Decimal {
	return utils.ClampDecimal(pct, minSLTPPct, maxPct)
}

// Build opens a planned Position for sig, sized to units, with SL/TP set
// either from the static configuration or, in DYNAMIC mode, from ATR
// multiples of the entry price (clamped to [1%,10%] for SL and [2%,15%]
// for TP). Static percentages are clamped to [1%,10%] for SL and
// [1%,15%] for TP.
func (m *Manager) Build(sig types.Signal, units, sizeEUR decimal.Decimal, bars []types.Bar) types.Position {
	entry := sig.CurrentPrice
	var slPct, tpPct decimal.Decimal

	if m.config.Mode == types.SLTPDynamic {
		highs := make([]decimal.Decimal, len(bars))
		lows := make([]decimal.Decimal, len(bars))
		closes := make([]decimal.Decimal, len(bars))
		for i, b := range bars {
			highs[i] = b.High
			lows[i] = b.Low
			closes[i] = b.Close
		}
		atrPct := decimal.NewFromFloat(indicators.ATRPercent(highs, lows, closes, 14)).Div(decimal.NewFromInt(100))
		slPct = clampPct(atrPct.Mul(m.config.ATRSLMultiplier), maxSLPct)
		tpPct = utils.ClampDecimal(atrPct.Mul(m.config.ATRTPMultiplier), minTPPct, maxTPPct)
	} else if sig.Direction == types.DirectionBuy {
		slPct = clampPct(m.config.StaticBuySL, maxSLPct)
		tpPct = clampPct(m.config.StaticBuyTP, maxTPPct)
	} else {
		slPct = clampPct(m.config.StaticSellSL, maxSLPct)
		tpPct = clampPct(m.config.StaticSellTP, maxTPPct)
	}

	one := decimal.NewFromInt(1)
	var sl, tp decimal.Decimal
	if sig.Direction == types.DirectionBuy {
		sl = entry.Mul(one.Sub(slPct))
		tp = entry.Mul(one.Add(tpPct))
	} else {
		sl = entry.Mul(one.Add(slPct))
		tp = entry.Mul(one.Sub(tpPct))
	}

	return types.Position{
		Epic:         sig.Epic,
		Status:       types.PositionPlanned,
		Direction:    sig.Direction,
		EntryTS:      sig.Timestamp,
		EntryPrice:   entry,
		Units:        units,
		SizeEUR:      sizeEUR,
		StopLoss:     sl,
		TakeProfit:   tp,
		Confidence:   sig.Confidence,
		Regime:       sig.Regime,
		CurrentPrice: entry,
	}
}

// Open transitions a planned Position to open.
func Open(pos types.Position) types.Position {
	pos.Status = types.PositionOpen
	return pos
}

// Monitor checks a single bar against an open position's SL/TP. Stop-loss
// takes priority over take-profit when a bar's range touches both in the
// same bar. Returns the exit reason and price, or ("", zero) if no exit
// triggers this bar.
func Monitor(pos types.Position, bar types.Bar) (types.ExitReason, decimal.Decimal) {
	if pos.Direction == types.DirectionBuy {
		if bar.Low.LessThanOrEqual(pos.StopLoss) {
			return types.ExitStopLoss, pos.StopLoss
		}
		if bar.High.GreaterThanOrEqual(pos.TakeProfit) {
			return types.ExitTakeProfit, pos.TakeProfit
		}
	} else {
		if bar.High.GreaterThanOrEqual(pos.StopLoss) {
			return types.ExitStopLoss, pos.StopLoss
		}
		if bar.Low.LessThanOrEqual(pos.TakeProfit) {
			return types.ExitTakeProfit, pos.TakeProfit
		}
	}
	return "", decimal.Zero
}

// RegimeLookup answers point regime queries at a given timestamp, letting
// Close/CloseAll label a Trade by its regime at exit without importing the
// regime detector package directly.
type RegimeLookup interface {
	At(epic string, ts time.Time) types.RegimeLabel
}

// Close computes the gross PnL for pos exiting at exitPrice for reason,
// and stamps the resulting Trade's temporal fields (day-of-week, hour).
// regime, if non-nil, is queried at exitTS to label the Trade's Regime
// field with the regime in force at exit (spec §3/§8), which may differ
// from the regime captured when the position was built. Net PnL/PnLPercent/
// Cost are left for the cost model to overwrite.
func Close(pos types.Position, exitTS time.Time, exitPrice decimal.Decimal, reason types.ExitReason, regime RegimeLookup) types.Trade {
	var gross decimal.Decimal
	if pos.Direction == types.DirectionBuy {
		gross = exitPrice.Sub(pos.EntryPrice).Mul(pos.Units)
	} else {
		gross = pos.EntryPrice.Sub(exitPrice).Mul(pos.Units)
	}

	pnlPercent := utils.CalculatePercentageChange(pos.SizeEUR, pos.SizeEUR.Add(gross))

	duration := exitTS.Sub(pos.EntryTS).Hours()

	exitRegime := pos.Regime
	if regime != nil {
		exitRegime = regime.At(pos.Epic, exitTS)
	}

	return types.Trade{
		Epic:          pos.Epic,
		Direction:     pos.Direction,
		EntryTS:       pos.EntryTS,
		ExitTS:        exitTS,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		Units:         pos.Units,
		PositionSize:  pos.SizeEUR,
		PnLGross:      gross,
		PnL:           gross,
		PnLPercent:    pnlPercent,
		ExitReason:    reason,
		Confidence:    pos.Confidence,
		DurationHours: duration,
		DayOfWeek:     exitTS.Weekday().String(),
		HourOfDay:     exitTS.Hour(),
		RegimeAtEntry: pos.Regime,
		Regime:        exitRegime,
	}
}

// CloseAll force-closes every open position at the final bar's close,
// tagged END_OF_RUN, for the simulation loop's end-of-run sweep.
func CloseAll(positions []types.Position, at time.Time, lastClose map[string]decimal.Decimal, regime RegimeLookup) []types.Trade {
	trades := make([]types.Trade, 0, len(positions))
	for _, pos := range positions {
		price, ok := lastClose[pos.Epic]
		if !ok {
			price = pos.CurrentPrice
		}
		trades = append(trades, Close(pos, at, price, types.ExitEndOfRun, regime))
	}
	return trades
}
