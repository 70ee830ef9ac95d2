package allocator

import (
	"testing"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

func sig(epic string, confidence float64) types.Signal {
	return types.Signal{Epic: epic, Direction: types.DirectionBuy, Confidence: confidence}
}

// Scenario 4 (spec §8): equity=10000, daily_budget_pct=0.05 (=500),
// per_trade_cap_pct=0.02 (=200), three simultaneous high-confidence
// signals => 200/200/100 partial tail, total = 500 = 5% of equity.
func TestAllocateForSignals_HonorsDailyBudgetWithPartialTail(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	signals := []types.Signal{sig("A", 0.9), sig("B", 0.8), sig("C", 0.7)}
	allocations := a.AllocateForSignals(decimal.NewFromInt(10000), signals, now)

	if !allocations["A"].Equal(decimal.NewFromInt(200)) {
		t.Fatalf("A allocation = %v, want 200", allocations["A"])
	}
	if !allocations["B"].Equal(decimal.NewFromInt(200)) {
		t.Fatalf("B allocation = %v, want 200", allocations["B"])
	}
	if !allocations["C"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("C (partial tail) allocation = %v, want 100", allocations["C"])
	}

	total := allocations["A"].Add(allocations["B"]).Add(allocations["C"])
	if !total.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("total allocated = %v, want 500 (5%% of equity)", total)
	}
}

func TestAllocateForSignals_SkipsBelowMinAllocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAllocation = decimal.NewFromInt(150)
	a := NewAllocator(cfg)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	signals := []types.Signal{sig("A", 0.9), sig("B", 0.8), sig("C", 0.7)}
	allocations := a.AllocateForSignals(decimal.NewFromInt(10000), signals, now)

	if _, ok := allocations["C"]; ok {
		t.Fatalf("C should be skipped: assigned tail (100) is below min allocation 150")
	}
}

func TestAllocateForSignals_DisallowPartialSkipsShortfall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowPartial = false
	a := NewAllocator(cfg)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	signals := []types.Signal{sig("A", 0.9), sig("B", 0.8), sig("C", 0.7)}
	allocations := a.AllocateForSignals(decimal.NewFromInt(10000), signals, now)

	if _, ok := allocations["C"]; ok {
		t.Fatalf("C should be skipped entirely when partial fills are disallowed and remaining < desired")
	}
	if len(allocations) != 2 {
		t.Fatalf("allocations = %v, want exactly A and B", allocations)
	}
}

func TestAllocateForSignals_ResetsOnNewDay(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	a.RecordFill("A", decimal.NewFromInt(500), day1)
	if a.State().SpentToday.IsZero() {
		t.Fatalf("spent today should be nonzero after a fill")
	}

	allocations := a.AllocateForSignals(decimal.NewFromInt(10000), []types.Signal{sig("B", 0.9)}, day2)
	if allocations["B"].IsZero() {
		t.Fatalf("budget should have reset on the new day, got zero allocation")
	}
}

func TestRecordFill_ReducesSubsequentRemainingBudget(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	a.RecordFill("A", decimal.NewFromInt(450), now)
	allocations := a.AllocateForSignals(decimal.NewFromInt(10000), []types.Signal{sig("B", 0.9)}, now)

	if !allocations["B"].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("B allocation = %v, want 50 (only 50 left of the 500 daily budget)", allocations["B"])
	}
}
