package simulation

import (
	"testing"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

type fakeBarSource struct {
	bars map[string][]types.Bar
}

func (f fakeBarSource) Fetch(epic string, resolution string, maxPoints int) ([]types.Bar, error) {
	return f.bars[epic], nil
}

func hourlyUptrend(start time.Time, n int, base float64) []types.Bar {
	bars := make([]types.Bar, n)
	price := base
	for i := 0; i < n; i++ {
		p := decimal.NewFromFloat(price)
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p.Add(decimal.NewFromFloat(1)),
			Low:       p.Sub(decimal.NewFromFloat(1)),
			Close:     p,
			Volume:    decimal.NewFromInt(1000),
		}
		price += 1.2
	}
	return bars
}

func baseBacktestConfig(start, end time.Time) types.BacktestConfig {
	return types.BacktestConfig{
		ID:       "test-run",
		StartDate: start,
		EndDate:   end,
		InitialCapital: decimal.NewFromInt(10000),
		Universe: types.UniverseConfig{Epics: []string{"E"}, Resolution: "1h"},
		Strategy: types.StrategyConfig{
			RSIPeriod: 14, RSIOversold: 30, RSIOverbought: 70,
			MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			SMAShort: 10, SMALong: 30, MomentumPeriod: 10,
			MinSignalsToTrade: 2, MinConfidence: 0,
		},
		Filter: types.FilterConfig{
			ATRPeriod: 14, ATRMin: 0.1, ATRMax: 10, ATROptimalLow: 0.1, ATROptimalHigh: 10,
			ADXPeriod: 14, ADXEnabled: false, ADXMinTrend: 20, ADXStrong: 40,
		},
		Capital: types.CapitalConfig{
			DailyBudgetPct: decimal.NewFromFloat(0.5),
			PerTradeCapPct: decimal.NewFromFloat(0.5),
			MinAllocation:  decimal.NewFromInt(1),
			AllowPartial:   true,
			MaxPositions:   5,
		},
		SLTP: types.SLTPConfig{
			Mode:         types.SLTPStatic,
			StaticBuySL:  decimal.NewFromFloat(0.05),
			StaticBuyTP:  decimal.NewFromFloat(0.10),
			StaticSellSL: decimal.NewFromFloat(0.05),
			StaticSellTP: decimal.NewFromFloat(0.10),
		},
		Cost: types.CostConfig{ApplySpread: types.ApplySpreadNone},
		Regime: types.RegimeConfig{ATRPeriod: 14, ATRThresholdPct: decimal.NewFromFloat(0.5), ADXThreshold: decimal.NewFromFloat(25)},
		Risk:   types.RiskConfig{EnableCircuitBreaker: false},
	}
}

func TestRun_ProducesEquityCurveAndNonNegativeCash(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyUptrend(start, 24*10, 100)
	source := fakeBarSource{bars: map[string][]types.Bar{"E": bars}}

	cfg := baseBacktestConfig(start, start.AddDate(0, 0, 10))
	runner := NewRunner(cfg, source, nil)

	result, err := runner.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.EquityCurve) == 0 {
		t.Fatalf("expected a non-empty equity curve")
	}
	for i := 1; i < len(result.EquityCurve); i++ {
		if result.EquityCurve[i].Timestamp.Before(result.EquityCurve[i-1].Timestamp) {
			t.Fatalf("equity curve timestamps must be non-decreasing")
		}
	}
}

func TestRun_NoEpicsYieldsBarDataMissingError(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := fakeBarSource{bars: map[string][]types.Bar{}}
	cfg := baseBacktestConfig(start, start.AddDate(0, 0, 1))

	runner := NewRunner(cfg, source, nil)
	if _, err := runner.Run(); err == nil {
		t.Fatalf("expected an error when no epic has any bar data")
	}
}

// Scenario 5 (spec §8): equity falls from a peak of 11000 to 9000 (an
// 18.2% drawdown) and the risk supervisor must trip.
func TestRunOneDate_DrawdownFromPeakTripsRiskSupervisor(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := baseBacktestConfig(start, start.AddDate(0, 0, 2))
	cfg.InitialCapital = decimal.NewFromInt(11000)
	cfg.Risk = types.RiskConfig{
		EnableCircuitBreaker:    true,
		MaxDailyLossPercent:     decimal.NewFromInt(100),
		MaxWeeklyLossPercent:    decimal.NewFromInt(100),
		MaxTotalDrawdownPercent: decimal.NewFromInt(15),
	}

	runner := NewRunner(cfg, fakeBarSource{bars: map[string][]types.Bar{}}, nil)
	runner.cash = decimal.NewFromInt(11000)
	runner.runOneDate(start, map[string][]types.Bar{})
	if runner.risk.IsActive() {
		t.Fatalf("supervisor should not be active while equity sits at its peak")
	}

	runner.cash = decimal.NewFromInt(9000)
	runner.runOneDate(start.AddDate(0, 0, 1), map[string][]types.Bar{})
	if !runner.risk.IsActive() {
		t.Fatalf("a drop from peak 11000 to 9000 (18.2%%) should trip the breaker at a 15%% limit")
	}
}

func TestRun_ClosesAllPositionsAtEndOfRun(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyUptrend(start, 24*5, 100)
	source := fakeBarSource{bars: map[string][]types.Bar{"E": bars}}
	cfg := baseBacktestConfig(start, start.AddDate(0, 0, 5))

	runner := NewRunner(cfg, source, nil)
	result, err := runner.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(runner.open) != 0 {
		t.Fatalf("all positions should be closed by end of run, got %d still open", len(runner.open))
	}
	for _, trade := range result.TradeList {
		if trade.ExitReason == "" {
			t.Fatalf("every trade should have an exit reason stamped")
		}
	}
}
