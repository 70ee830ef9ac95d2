// Package regime labels bars as trending or lateral from ATR% and ADX.
//
// Adapted from the config-with-defaults and mutex-protected state shape of
// a Hidden-Markov multi-regime classifier; the classification kernel here
// is deliberately simple, per spec §4.B — the two-threshold rule replaces
// the HMM's forward-algorithm state probabilities.
package regime

import (
	"sort"
	"sync"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/indicators"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// Config holds the regime detector's thresholds.
type Config struct {
	ATRPeriod       int
	ATRThresholdPct decimal.Decimal
	ADXThreshold    decimal.Decimal
}

// DefaultConfig returns the default thresholds (ADX > 25, ATR% > 0.5).
func DefaultConfig() Config {
	return Config{
		ATRPeriod:       14,
		ATRThresholdPct: decimal.NewFromFloat(0.5),
		ADXThreshold:    decimal.NewFromFloat(25),
	}
}

// labeledBar is one precomputed (timestamp, label) pair.
type labeledBar struct {
	ts    time.Time
	label types.RegimeLabel
}

// Detector precomputes a regime label per bar for one epic's series and
// answers point queries by "most recent bar <= query timestamp".
type Detector struct {
	mu     sync.RWMutex
	config Config
	series map[string][]labeledBar // epic -> ascending-by-ts labels
}

// NewDetector creates a regime detector with the given configuration.
func NewDetector(config Config) *Detector {
	return &Detector{
		config: config,
		series: make(map[string][]labeledBar),
	}
}

// Precompute labels every bar in bars (ascending by timestamp) for epic and
// stores the result for later point queries.
func (d *Detector) Precompute(epic string, bars []types.Bar) {
	d.mu.Lock()
	defer d.mu.Unlock()

	labels := make([]labeledBar, len(bars))
	highs := make([]decimal.Decimal, 0, len(bars))
	lows := make([]decimal.Decimal, 0, len(bars))
	closes := make([]decimal.Decimal, 0, len(bars))

	for i, bar := range bars {
		highs = append(highs, bar.High)
		lows = append(lows, bar.Low)
		closes = append(closes, bar.Close)

		label := types.RegimeLateral
		if len(closes) >= d.config.ATRPeriod*2+1 {
			atrPct := decimal.NewFromFloat(indicators.ATRPercent(highs, lows, closes, d.config.ATRPeriod))
			adx := indicators.ADX(highs, lows, closes, d.config.ATRPeriod)
			if decimal.NewFromFloat(adx.ADX).GreaterThan(d.config.ADXThreshold) && atrPct.GreaterThan(d.config.ATRThresholdPct) {
				label = types.RegimeTrending
			}
		}
		labels[i] = labeledBar{ts: bar.Timestamp, label: label}
	}

	d.series[epic] = labels
}

// At returns the regime label in force at timestamp ts for epic: the label
// of the most recent precomputed bar with ts' <= ts, or lateral if none
// exists (per spec §4.B).
func (d *Detector) At(epic string, ts time.Time) types.RegimeLabel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	labels, ok := d.series[epic]
	if !ok || len(labels) == 0 {
		return types.RegimeLateral
	}

	idx := sort.Search(len(labels), func(i int) bool {
		return labels[i].ts.After(ts)
	})
	if idx == 0 {
		return types.RegimeLateral
	}
	return labels[idx-1].label
}
