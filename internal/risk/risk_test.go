package risk

import (
	"testing"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

func baseConfig() types.RiskConfig {
	return types.RiskConfig{
		EnableCircuitBreaker:    true,
		MaxDailyLossPercent:     decimal.NewFromInt(5),
		MaxWeeklyLossPercent:    decimal.NewFromInt(10),
		MaxConsecutiveLosses:    3,
		MaxTotalDrawdownPercent: decimal.NewFromInt(20),
	}
}

// Scenario 5 (spec §8): circuit-breaker drawdown trip.
func TestUpdateBalance_TripsOnDrawdownFromPeak(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cfg := baseConfig()
	cfg.MaxDailyLossPercent = decimal.NewFromInt(100)
	cfg.MaxWeeklyLossPercent = decimal.NewFromInt(100)
	s := NewSupervisor(cfg, decimal.NewFromInt(10000), now)

	s.UpdateBalance(decimal.NewFromInt(12000), now)
	s.UpdateBalance(decimal.NewFromInt(9000), now) // 25% down from peak of 12000

	if !s.IsActive() {
		t.Fatalf("supervisor should be tripped after a 25%% drawdown from peak (limit 20%%)")
	}
	if s.State().ActivationReason == "" {
		t.Fatalf("expected an activation reason to be recorded")
	}
}

func TestUpdateBalance_NoTripWithinLimits(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSupervisor(baseConfig(), decimal.NewFromInt(10000), now)

	s.UpdateBalance(decimal.NewFromInt(9900), now)
	if s.IsActive() {
		t.Fatalf("supervisor should not trip on a small loss within limits")
	}
}

func TestRegisterTradeResult_TripsOnConsecutiveLosses(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSupervisor(baseConfig(), decimal.NewFromInt(10000), now)

	s.RegisterTradeResult(decimal.NewFromInt(-10), now)
	s.RegisterTradeResult(decimal.NewFromInt(-10), now)
	if s.IsActive() {
		t.Fatalf("should not trip after only 2 of 3 allowed consecutive losses")
	}
	s.RegisterTradeResult(decimal.NewFromInt(-10), now)
	if !s.IsActive() {
		t.Fatalf("should trip after 3 consecutive losses (limit 3)")
	}
}

func TestRegisterTradeResult_WinResetsConsecutiveLossStreak(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSupervisor(baseConfig(), decimal.NewFromInt(10000), now)

	s.RegisterTradeResult(decimal.NewFromInt(-10), now)
	s.RegisterTradeResult(decimal.NewFromInt(-10), now)
	s.RegisterTradeResult(decimal.NewFromInt(10), now)
	if s.State().ConsecutiveLosses != 0 {
		t.Fatalf("consecutive losses = %d, want reset to 0 after a win", s.State().ConsecutiveLosses)
	}
}

func TestReset_ManuallyClearsTrippedState(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSupervisor(baseConfig(), decimal.NewFromInt(10000), now)
	s.UpdateBalance(decimal.NewFromInt(12000), now)
	s.UpdateBalance(decimal.NewFromInt(9000), now)

	if !s.IsActive() {
		t.Fatalf("precondition: supervisor should be tripped")
	}

	s.Reset()
	if s.IsActive() {
		t.Fatalf("supervisor should not be active after a manual reset")
	}
}

func TestWeeklyAnchor_RollsForwardAfterSevenDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSupervisor(baseConfig(), decimal.NewFromInt(10000), start)

	later := start.AddDate(0, 0, 8)
	s.UpdateBalance(decimal.NewFromInt(9800), later)

	if !s.State().WeeklyAnchorDate.Equal(later.UTC().Truncate(24 * time.Hour)) {
		t.Fatalf("weekly anchor date should roll forward after 7+ days")
	}
}
