// Package allocator rations available capital across a batch of
// simultaneous signals, honoring a daily spend budget and a per-trade
// cap, in confidence order (spec §4.D).
package allocator

import (
	"sort"
	"sync"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// Config holds the allocator's tunable parameters (spec §6).
type Config struct {
	DailyBudgetPct  decimal.Decimal
	PerTradeCapPct  decimal.Decimal
	MinAllocation   decimal.Decimal
	AllowPartial    bool
}

// DefaultConfig returns the default allocation parameters.
func DefaultConfig() Config {
	return Config{
		DailyBudgetPct: decimal.NewFromFloat(0.05),
		PerTradeCapPct: decimal.NewFromFloat(0.02),
		MinAllocation:  decimal.NewFromInt(10),
		AllowPartial:   true,
	}
}

// Allocator tracks the day's cumulative spend and rations new allocations
// against the remaining daily budget. Single-owner in the simulation loop;
// mutex-guarded for the live loop.
type Allocator struct {
	mu     sync.Mutex
	config Config
	state  types.AllocatorState
}

// NewAllocator creates an allocator with an unreset state.
func NewAllocator(config Config) *Allocator {
	return &Allocator{config: config}
}

// resetIfNewDay clears the day's cumulative spend on a UTC calendar-date
// change. Caller must hold a.mu.
func (a *Allocator) resetIfNewDay(now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	if !a.state.LastResetDate.Equal(today) {
		a.state.LastResetDate = today
		a.state.SpentToday = decimal.Zero
	}
}

// AllocateForSignals rations equity across signals (highest confidence
// first, stable on ties) against the remaining daily budget. Returns a
// map of epic to allocated euros; signals that can't clear MinAllocation
// are omitted entirely.
func (a *Allocator) AllocateForSignals(equity decimal.Decimal, signals []types.Signal, now time.Time) map[string]decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetIfNewDay(now)

	dailyBudget := equity.Mul(a.config.DailyBudgetPct)
	remaining := dailyBudget.Sub(a.state.SpentToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	ordered := make([]types.Signal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	desired := equity.Mul(a.config.PerTradeCapPct)
	allocations := make(map[string]decimal.Decimal)

	for _, sig := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		var assigned decimal.Decimal
		if a.config.AllowPartial {
			assigned = decimal.Min(desired, remaining)
		} else if remaining.GreaterThanOrEqual(desired) {
			assigned = desired
		} else {
			continue
		}

		if assigned.LessThan(a.config.MinAllocation) {
			continue
		}

		allocations[sig.Epic] = assigned
		remaining = remaining.Sub(assigned)
	}

	return allocations
}

// RecordFill credits an executed allocation against the day's cumulative
// spend, resetting the day first if needed.
func (a *Allocator) RecordFill(epic string, amount decimal.Decimal, when time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetIfNewDay(when)
	a.state.SpentToday = a.state.SpentToday.Add(amount)
}

// State returns a copy of the allocator's current tracked state.
func (a *Allocator) State() types.AllocatorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
