// Package instrument holds and caches per-instrument trading constraints
// and computes required margin and position size (spec §4.E).
package instrument

import (
	"regexp"
	"sync"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/juanpimr2/intraday-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

var trailingDigitsRE = regexp.MustCompile(`[0-9]{2,}$`)
var lettersRE = regexp.MustCompile(`[A-Za-z]`)

// isEquityLike heuristically classifies an epic: equity-like if it
// contains >= 2 letters and does not end with >= 2 digits.
func isEquityLike(epic string) bool {
	letterCount := len(lettersRE.FindAllString(epic, -1))
	return letterCount >= 2 && !trailingDigitsRE.MatchString(epic)
}

// fallbackMarginRate returns the conservative default margin rate for an
// epic lacking a confirmed InstrumentSpec: 0.20 for equity-like, 0.05 otherwise.
func fallbackMarginRate(epic string) decimal.Decimal {
	if isEquityLike(epic) {
		return decimal.NewFromFloat(0.20)
	}
	return decimal.NewFromFloat(0.05)
}

// BrokerLookup fetches the authoritative InstrumentSpec for an epic. In
// backtests this is typically absent (nil), which always yields the
// conservative fallback; in live mode it is backed by the broker collaborator.
type BrokerLookup func(epic string) (types.InstrumentSpec, error)

// Model caches InstrumentSpecs, acquiring them lazily on cache miss.
// Single-owner in the simulation loop; mutex-guarded for the live loop
// per spec §5 ("live loop uses a mutex to serialize fetches").
type Model struct {
	mu     sync.Mutex
	lookup BrokerLookup
	cache  map[string]types.InstrumentSpec
}

// NewModel creates an instrument model. lookup may be nil, in which case
// every epic resolves to the conservative fallback spec.
func NewModel(lookup BrokerLookup) *Model {
	return &Model{
		lookup: lookup,
		cache:  make(map[string]types.InstrumentSpec),
	}
}

// Spec returns the cached or newly-acquired InstrumentSpec for epic.
func (m *Model) Spec(epic string) types.InstrumentSpec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spec, ok := m.cache[epic]; ok {
		return spec
	}

	var spec types.InstrumentSpec
	acquired := false
	if m.lookup != nil {
		if s, err := m.lookup(epic); err == nil {
			spec = s
			acquired = true
		}
	}

	if !acquired {
		spec = types.InstrumentSpec{
			Epic:       epic,
			MarginRate: fallbackMarginRate(epic),
			MinSize:    decimal.NewFromFloat(0.01),
			StepSize:   decimal.NewFromFloat(0.01),
			Precision:  2,
			Fallback:   true,
		}
	}

	m.cache[epic] = spec
	return spec
}

// Margin computes the required margin for units of epic at price, using
// leverage if set, else margin rate, else the cached spec's fallback.
func Margin(price, units decimal.Decimal, spec types.InstrumentSpec) decimal.Decimal {
	notional := price.Mul(units)
	if !spec.Leverage.IsZero() {
		return notional.Div(spec.Leverage)
	}
	if !spec.MarginRate.IsZero() {
		return notional.Mul(spec.MarginRate)
	}
	return notional.Mul(fallbackMarginRate(spec.Epic))
}

// SizingResult is the output of PositionSize: the rounded unit count, the
// spec used, the actual estimated margin for those units, and a diagnostic
// flag when the rounded size consumes materially more margin than requested.
type SizingResult struct {
	Units           decimal.Decimal
	Spec            types.InstrumentSpec
	EstimatedMargin decimal.Decimal
	MarginOverTarget bool
}

// PositionSize computes the unit count that would consume approximately
// targetMarginEUR of margin at the current rate, rounded to the
// instrument's step/min/precision constraints (spec §4.E).
func (m *Model) PositionSize(epic string, price, targetMarginEUR decimal.Decimal) SizingResult {
	spec := m.Spec(epic)

	if price.IsZero() {
		return SizingResult{Units: decimal.Zero, Spec: spec, EstimatedMargin: decimal.Zero}
	}

	// 1. Raw units that would consume exactly targetMarginEUR.
	var rawUnits decimal.Decimal
	if !spec.Leverage.IsZero() {
		rawUnits = targetMarginEUR.Mul(spec.Leverage).Div(price)
	} else {
		rate := spec.MarginRate
		if rate.IsZero() {
			rate = fallbackMarginRate(epic)
		}
		rawUnits = targetMarginEUR.Div(rate).Div(price)
	}

	// 2. Floor to step, lift to min size, round to precision.
	units := utils.RoundToStepSize(rawUnits, spec.StepSize)
	units = utils.MaxDecimal(units, spec.MinSize)
	units = units.Round(spec.Precision)

	// 3. Actual estimated margin for the rounded units.
	estMargin := Margin(price, units, spec)

	// 4. Diagnostic: warn if est_margin > 1.3 * target.
	overTarget := false
	if !targetMarginEUR.IsZero() {
		ratio := estMargin.Div(targetMarginEUR)
		overTarget = ratio.GreaterThan(decimal.NewFromFloat(1.3))
	}

	return SizingResult{
		Units:            units,
		Spec:             spec,
		EstimatedMargin:  estMargin,
		MarginOverTarget: overTarget,
	}
}
