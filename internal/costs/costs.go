// Package costs computes the commission-plus-spread cost of a trade,
// merging per-instrument overrides over global defaults, per spec §4.G.
//
// Adapted from a slippage-model factory that selected among several
// cost curves (fixed, percentage-of-notional, volume-impact); this
// model is the single two-component (commission + spread) formula the
// spec names, with the factory's per-instrument override lookup kept.
package costs

import (
	"math"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// Model computes cost breakdowns from a CostConfig.
type Model struct {
	config types.CostConfig
}

// NewModel creates a cost model bound to its configuration.
func NewModel(config types.CostConfig) *Model {
	return &Model{config: config}
}

// resolved holds the effective commission/spread/point-value for one epic,
// after merging override > default precedence.
type resolved struct {
	commission decimal.Decimal
	spread     decimal.Decimal
	pointValue decimal.Decimal
}

// resolve merges the per-instrument override (if present) over the global
// defaults. Row-level overrides, when supplied by the caller, take
// precedence over both (see Apply's rowOverride parameter).
func (m *Model) resolve(epic string) resolved {
	r := resolved{
		commission: m.config.CommissionPerTrade,
		spread:     m.config.SpreadInPointsDefault,
		pointValue: m.config.PointValueDefault,
	}
	if override, ok := m.config.Overrides[epic]; ok {
		if !override.CommissionPerTrade.IsZero() {
			r.commission = override.CommissionPerTrade
		}
		if !override.SpreadInPoints.IsZero() {
			r.spread = override.SpreadInPoints
		}
		if !override.PointValue.IsZero() {
			r.pointValue = override.PointValue
		}
	}
	return r
}

// Apply computes the cost breakdown for a round-trip trade of units on
// epic. rowOverride, if non-nil, takes precedence over both the
// per-instrument override and the global default (row > override > default).
//
// cost_spread = spread_points × point_value × |units| × factor (spec
// §4.G); "once" and "both" charge the same spread total: "once"
// attributes the full spread cost to the entry leg, "both" splits it
// evenly across entry and exit, "none" omits it. Commission is
// always charged once per round trip regardless of spread mode.
func (m *Model) Apply(epic string, units decimal.Decimal, rowOverride *types.InstrumentCostOverride) types.CostBreakdown {
	r := m.resolve(epic)
	if rowOverride != nil {
		if !rowOverride.CommissionPerTrade.IsZero() {
			r.commission = rowOverride.CommissionPerTrade
		}
		if !rowOverride.SpreadInPoints.IsZero() {
			r.spread = rowOverride.SpreadInPoints
		}
		if !rowOverride.PointValue.IsZero() {
			r.pointValue = rowOverride.PointValue
		}
	}

	spreadCost := r.spread.Mul(r.pointValue).Mul(units.Abs())
	if !isFinite(spreadCost) {
		spreadCost = decimal.Zero
	}
	commission := r.commission
	if !isFinite(commission) {
		commission = decimal.Zero
	}

	var entry, exit decimal.Decimal
	switch m.config.ApplySpread {
	case types.ApplySpreadOnce:
		entry = spreadCost
		exit = decimal.Zero
	case types.ApplySpreadBoth:
		half := spreadCost.Div(decimal.NewFromInt(2))
		entry = half
		exit = half
	case types.ApplySpreadNone:
		entry = decimal.Zero
		exit = decimal.Zero
	default:
		entry = spreadCost
		exit = decimal.Zero
	}

	total := commission.Add(entry).Add(exit)

	return types.CostBreakdown{
		Commission:  commission,
		SpreadEntry: entry,
		SpreadExit:  exit,
		Total:       total,
	}
}

// isFinite guards against a Decimal constructed from a non-finite float64
// upstream (e.g. a malformed config value); Apply treats such a value as
// zero rather than propagating NaN into a trade's cost.
func isFinite(d decimal.Decimal) bool {
	f, _ := d.Float64()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
