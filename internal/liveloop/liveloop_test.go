package liveloop

import (
	"context"
	"testing"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

type fakeLiveSource struct {
	bars map[string][]types.Bar
}

func (f fakeLiveSource) FetchLatest(epic string, resolution string) ([]types.Bar, error) {
	return f.bars[epic], nil
}

type recordingSink struct {
	trades       []types.Trade
	equityPoints []types.EquityPoint
	signals      []types.Signal
}

func (r *recordingSink) SaveTrade(t types.Trade)             { r.trades = append(r.trades, t) }
func (r *recordingSink) SaveEquityPoint(e types.EquityPoint) { r.equityPoints = append(r.equityPoints, e) }
func (r *recordingSink) SaveSignal(s types.Signal)           { r.signals = append(r.signals, s) }

func uptrend(start time.Time, n int, base float64) []types.Bar {
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

func baseConfig() types.BacktestConfig {
	return types.BacktestConfig{
		Universe: types.UniverseConfig{Epics: []string{"E"}, Resolution: "1h", ScanInterval: 50 * time.Millisecond},
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
		Cost:   types.CostConfig{ApplySpread: types.ApplySpreadNone},
		Regime: types.RegimeConfig{ATRPeriod: 14, ATRThresholdPct: decimal.NewFromFloat(0.5), ADXThreshold: decimal.NewFromFloat(25)},
		Risk:   types.RiskConfig{EnableCircuitBreaker: false},
	}
}

// alwaysOpenHours opens every hour of the day; within() still treats
// Saturday and Sunday as closed.
func alwaysOpenHours() TradingHours {
	return TradingHours{StartHour: 0, EndHour: 24, Location: time.UTC}
}

func TestRun_NoOpWhenPaused(t *testing.T) {
	start := time.Now().UTC()
	bars := uptrend(start.Add(-30*time.Hour), 30, 100)
	source := fakeLiveSource{bars: map[string][]types.Bar{"E": bars}}
	sink := &recordingSink{}

	loop := NewLoop(baseConfig(), source, sink, alwaysOpenHours(), decimal.NewFromInt(10000))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	if len(sink.equityPoints) != 0 {
		t.Fatalf("a paused loop should never persist equity points, got %d", len(sink.equityPoints))
	}
}

func TestRun_TicksAndPersistsEquityWhenRunning(t *testing.T) {
	start := time.Now().UTC()
	bars := uptrend(start.Add(-30*time.Hour), 30, 100)
	source := fakeLiveSource{bars: map[string][]types.Bar{"E": bars}}
	sink := &recordingSink{}

	loop := NewLoop(baseConfig(), source, sink, alwaysOpenHours(), decimal.NewFromInt(10000))
	loop.State().Start(start)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	if len(sink.equityPoints) == 0 {
		t.Fatalf("expected at least one persisted equity point while running")
	}
}

func TestTradingHours_RejectsWeekendsAndOutOfWindow(t *testing.T) {
	hours := TradingHours{StartHour: 9, EndHour: 22, Location: time.UTC}

	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if hours.within(saturday) {
		t.Fatalf("Saturday should be outside trading hours")
	}

	weekdayNight := time.Date(2026, 7, 29, 3, 0, 0, 0, time.UTC)
	if hours.within(weekdayNight) {
		t.Fatalf("03:00 should be outside the default 09-22 window")
	}

	weekdayNoon := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	if !hours.within(weekdayNoon) {
		t.Fatalf("noon on a weekday should be inside the default window")
	}
}

// Scenario 5 (spec §8): equity falls from a peak of 11000 to 9000 (an
// 18.2% drawdown) and the risk supervisor must trip.
func TestPersistEquity_DrawdownFromPeakTripsRiskSupervisor(t *testing.T) {
	start := time.Now().UTC()
	source := fakeLiveSource{bars: map[string][]types.Bar{}}
	cfg := baseConfig()
	cfg.Risk = types.RiskConfig{
		EnableCircuitBreaker:    true,
		MaxDailyLossPercent:     decimal.NewFromInt(100),
		MaxWeeklyLossPercent:    decimal.NewFromInt(100),
		MaxTotalDrawdownPercent: decimal.NewFromInt(15),
	}

	loop := NewLoop(cfg, source, nil, alwaysOpenHours(), decimal.NewFromInt(11000))
	loop.persistEquity(start)
	if loop.risk.IsActive() {
		t.Fatalf("supervisor should not be active while equity sits at its peak")
	}

	loop.cash = decimal.NewFromInt(9000)
	loop.persistEquity(start.Add(time.Hour))
	if !loop.risk.IsActive() {
		t.Fatalf("a drop from peak 11000 to 9000 (18.2%%) should trip the breaker at a 15%% limit")
	}
}

type fakeAccount struct {
	available decimal.Decimal
}

func (f fakeAccount) Snapshot() (decimal.Decimal, decimal.Decimal, error) {
	return f.available, f.available, nil
}

type fakeRouter struct {
	placed []string
	closed []string
}

func (f *fakeRouter) Place(epic string, direction types.Direction, units decimal.Decimal) (string, decimal.Decimal, error) {
	f.placed = append(f.placed, epic)
	return "ref-" + epic, decimal.NewFromInt(100), nil
}

func (f *fakeRouter) Close(dealReference string) (decimal.Decimal, error) {
	f.closed = append(f.closed, dealReference)
	return decimal.NewFromInt(50), nil
}

func TestTick_RoutesThroughAccountAndOrderRouterWhenSet(t *testing.T) {
	start := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC) // a Wednesday
	bars := uptrend(start.Add(-30*time.Hour), 30, 100)
	source := fakeLiveSource{bars: map[string][]types.Bar{"E": bars}}
	sink := &recordingSink{}

	loop := NewLoop(baseConfig(), source, sink, alwaysOpenHours(), decimal.NewFromInt(10000))
	loop.State().Start(start)
	loop.SetAccountSource(fakeAccount{available: decimal.NewFromInt(5000)})
	router := &fakeRouter{}
	loop.SetOrderRouter(router)

	loop.tick(start)

	if loop.cash.Cmp(decimal.NewFromInt(5000)) > 0 {
		t.Fatalf("cash should reconcile to the account snapshot's available balance")
	}
	if len(router.placed) == 0 {
		t.Fatalf("expected at least one order placed through the router")
	}
}

func TestTick_HeartbeatUpdatesEvenWhenPaused(t *testing.T) {
	start := time.Now().UTC()
	bars := uptrend(start.Add(-30*time.Hour), 30, 100)
	source := fakeLiveSource{bars: map[string][]types.Bar{"E": bars}}
	sink := &recordingSink{}

	loop := NewLoop(baseConfig(), source, sink, alwaysOpenHours(), decimal.NewFromInt(10000))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	if loop.State().Status().LastHeartbeat.IsZero() {
		t.Fatalf("heartbeat should update on every tick regardless of running state")
	}
}
