// Package simulation drives the deterministic, single-threaded,
// event-driven backtest loop over historical bars (spec §4.I), wiring
// together the regime detector, strategy evaluator, capital allocator,
// instrument model, position manager, cost model, and risk supervisor.
package simulation

import (
	"sort"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/allocator"
	"github.com/juanpimr2/intraday-engine/internal/costs"
	"github.com/juanpimr2/intraday-engine/internal/engineerrors"
	"github.com/juanpimr2/intraday-engine/internal/instrument"
	"github.com/juanpimr2/intraday-engine/internal/metrics"
	"github.com/juanpimr2/intraday-engine/internal/position"
	"github.com/juanpimr2/intraday-engine/internal/regime"
	"github.com/juanpimr2/intraday-engine/internal/risk"
	"github.com/juanpimr2/intraday-engine/internal/strategy"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// BarSource supplies the historical bar series a simulation run consumes.
// Mirrors spec §6's BarSource contract.
type BarSource interface {
	Fetch(epic string, resolution string, maxPoints int) ([]types.Bar, error)
}

// Sink receives emitted records during a run. All methods must tolerate
// being no-ops (spec §6's Persistence sink is optional).
type Sink interface {
	SaveTrade(types.Trade)
	SaveEquityPoint(types.EquityPoint)
	SaveSignal(types.Signal)
}

// NoopSink discards every emitted record.
type NoopSink struct{}

func (NoopSink) SaveTrade(types.Trade)             {}
func (NoopSink) SaveEquityPoint(types.EquityPoint) {}
func (NoopSink) SaveSignal(types.Signal)           {}

// Diagnostic records a non-fatal per-epic failure encountered mid-run.
type Diagnostic struct {
	Epic string
	Err  error
}

// Runner owns one backtest's collaborators and mutable run state.
type Runner struct {
	config    types.BacktestConfig
	bars      BarSource
	sink      Sink
	regime    *regime.Detector
	evaluator *strategy.Evaluator
	allocator *allocator.Allocator
	instr     *instrument.Model
	posMgr    *position.Manager
	costModel *costs.Model
	risk      *risk.Supervisor

	cash        decimal.Decimal
	open        map[string]types.Position
	trades      []types.Trade
	equityCurve []types.EquityPoint
	diagnostics []Diagnostic
}

// NewRunner wires every collaborator from config, ready to run.
func NewRunner(config types.BacktestConfig, bars BarSource, sink Sink) *Runner {
	if sink == nil {
		sink = NoopSink{}
	}

	regimeCfg := regime.Config{
		ATRPeriod:       config.Regime.ATRPeriod,
		ATRThresholdPct: config.Regime.ATRThresholdPct,
		ADXThreshold:    config.Regime.ADXThreshold,
	}
	regimeDetector := regime.NewDetector(regimeCfg)

	strategyCfg := strategy.Config{
		RSIPeriod:         config.Strategy.RSIPeriod,
		RSIOversold:       config.Strategy.RSIOversold,
		RSIOverbought:     config.Strategy.RSIOverbought,
		MACDFast:          config.Strategy.MACDFast,
		MACDSlow:          config.Strategy.MACDSlow,
		MACDSignal:        config.Strategy.MACDSignal,
		SMAShort:          config.Strategy.SMAShort,
		SMALong:           config.Strategy.SMALong,
		MomentumPeriod:    config.Strategy.MomentumPeriod,
		ATRPeriod:         config.Filter.ATRPeriod,
		ATRMin:            config.Filter.ATRMin,
		ATRMax:            config.Filter.ATRMax,
		ATROptimalLow:     config.Filter.ATROptimalLow,
		ATROptimalHigh:    config.Filter.ATROptimalHigh,
		ADXPeriod:         config.Filter.ADXPeriod,
		ADXEnabled:        config.Filter.ADXEnabled,
		ADXMinTrend:       config.Filter.ADXMinTrend,
		ADXStrong:         config.Filter.ADXStrong,
		MinSignalsToTrade: config.Strategy.MinSignalsToTrade,
		MinConfidence:     config.Strategy.MinConfidence,
		MTFEnabled:        config.Strategy.MTFEnabled,
	}

	allocCfg := allocator.Config{
		DailyBudgetPct: config.Capital.DailyBudgetPct,
		PerTradeCapPct: config.Capital.PerTradeCapPct,
		MinAllocation:  config.Capital.MinAllocation,
		AllowPartial:   config.Capital.AllowPartial,
	}

	return &Runner{
		config:    config,
		bars:      bars,
		sink:      sink,
		regime:    regimeDetector,
		evaluator: strategy.NewEvaluator(strategyCfg, regimeDetector),
		allocator: allocator.NewAllocator(allocCfg),
		instr:     instrument.NewModel(nil),
		posMgr:    position.NewManager(config.SLTP),
		costModel: costs.NewModel(config.Cost),
		risk:      risk.NewSupervisor(config.Risk, config.InitialCapital, config.StartDate),
		cash:      config.InitialCapital,
		open:      make(map[string]types.Position),
	}
}

// Run executes the full backtest and returns the aggregated BacktestResult.
func (r *Runner) Run() (types.BacktestResult, error) {
	startedAt := r.config.StartDate

	epicBars, err := r.loadAllBars()
	if err != nil {
		return types.BacktestResult{}, err
	}

	for epic, bars := range epicBars {
		r.regime.Precompute(epic, bars)
	}

	dates := unionDates(epicBars, r.config.StartDate, r.config.EndDate)

	for _, date := range dates {
		r.runOneDate(date, epicBars)
	}

	finalBarClose := lastCloseByEpic(epicBars, dates)
	endTS := r.config.EndDate
	if len(dates) > 0 {
		endTS = dates[len(dates)-1]
	}
	r.closeAllOpenPositions(endTS, finalBarClose)
	r.applyCostsToAllTrades()

	capital, tradeSummary, drawdown, riskSummary, temporal, dailyReturns := metrics.Compute(r.config.InitialCapital, r.trades, r.equityCurve)

	return types.BacktestResult{
		ID:           r.config.ID,
		Capital:      capital,
		Trades:       tradeSummary,
		Drawdown:     drawdown,
		Risk:         riskSummary,
		Temporal:     temporal,
		EquityCurve:  r.equityCurve,
		DailyReturns: dailyReturns,
		TradeList:    r.trades,
		StartedAt:    startedAt,
		FinishedAt:   endTS,
	}, nil
}

// Diagnostics returns the non-fatal per-epic failures recorded during the run.
func (r *Runner) Diagnostics() []Diagnostic {
	return r.diagnostics
}

func (r *Runner) loadAllBars() (map[string][]types.Bar, error) {
	result := make(map[string][]types.Bar, len(r.config.Universe.Epics))
	for _, epic := range r.config.Universe.Epics {
		bars, err := r.bars.Fetch(epic, r.config.Universe.Resolution, 0)
		if err != nil {
			r.diagnostics = append(r.diagnostics, Diagnostic{Epic: epic, Err: engineerrors.Wrap(err, epic, time.Now())})
			continue
		}
		result[epic] = bars
	}
	if len(result) == 0 {
		return nil, engineerrors.ErrBarDataMissing
	}
	return result, nil
}

// runOneDate executes the §4.I phase sequence for a single calendar date.
func (r *Runner) runOneDate(date time.Time, epicBars map[string][]types.Bar) {
	dayBars := barsOnDate(epicBars, date)

	// 1. Update phase: monitor every open position against its day's bars.
	lastTS := date
	for epic, pos := range r.open {
		bars := dayBars[epic]
		for _, bar := range bars {
			if reason, price := position.Monitor(pos, bar); reason != "" {
				trade := position.Close(pos, bar.Timestamp, price, reason, r.regime)
				r.recordClose(epic, trade)
				r.risk.RegisterTradeResult(trade.PnL, bar.Timestamp)
				break
			}
			pos.CurrentPrice = bar.Close
			r.open[epic] = pos
			lastTS = bar.Timestamp
		}
	}

	// 2. Signal phase: evaluate surviving epics with a strict no-look-ahead window.
	var signals []types.Signal
	for epic, bars := range epicBars {
		window := strategy.EvaluationWindow(bars, date.Add(24*time.Hour).Add(-time.Nanosecond))
		if len(window) == 0 {
			continue
		}
		if window[len(window)-1].Timestamp.After(lastTS) {
			lastTS = window[len(window)-1].Timestamp
		}
		sig := r.evaluator.Evaluate(epic, window, nil)
		if sig.Direction == types.DirectionNeutral {
			continue
		}
		if strategy.RegimeFiltered(sig, r.config.Regime.FilterBlock, r.config.Regime.FilterEnabled) {
			continue
		}
		r.sink.SaveSignal(sig)
		signals = append(signals, sig)
	}

	// 3. Risk gate: a tripped supervisor skips straight to mark-to-market.
	if !r.risk.IsActive() {
		// 4. Allocate phase.
		equity := r.equity(epicBars, date)
		allocations := r.allocator.AllocateForSignals(equity, signals, date)

		// 5. Open phase: confidence-desc order, one position per epic, cash-gated.
		sort.SliceStable(signals, func(i, j int) bool {
			return signals[i].Confidence > signals[j].Confidence
		})
		for _, sig := range signals {
			allocated, ok := allocations[sig.Epic]
			if !ok || allocated.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if _, alreadyOpen := r.open[sig.Epic]; alreadyOpen {
				continue
			}
			if len(r.open) >= r.config.Capital.MaxPositions && r.config.Capital.MaxPositions > 0 {
				continue
			}
			if r.cash.LessThan(allocated) {
				continue
			}

			sizing := r.instr.PositionSize(sig.Epic, sig.CurrentPrice, allocated)
			pos := r.posMgr.Build(sig, sizing.Units, allocated, epicBars[sig.Epic])
			pos = position.Open(pos)

			r.open[sig.Epic] = pos
			r.cash = r.cash.Sub(allocated)
			r.allocator.RecordFill(sig.Epic, allocated, date)
		}
	}

	// 6. Mark-to-market phase.
	var unrealized decimal.Decimal
	for _, pos := range r.open {
		var legPnL decimal.Decimal
		if pos.Direction == types.DirectionBuy {
			legPnL = pos.CurrentPrice.Sub(pos.EntryPrice).Mul(pos.Units)
		} else {
			legPnL = pos.EntryPrice.Sub(pos.CurrentPrice).Mul(pos.Units)
		}
		unrealized = unrealized.Add(pos.SizeEUR).Add(legPnL)
	}

	point := types.EquityPoint{
		Timestamp:         lastTS,
		Equity:            r.cash.Add(unrealized),
		Cash:              r.cash,
		OpenPositionCount: len(r.open),
	}
	r.equityCurve = append(r.equityCurve, point)
	r.sink.SaveEquityPoint(point)
	r.risk.UpdateBalance(point.Equity, lastTS)
}

// equity computes cash + sum(size_eur) for currently open positions, the
// basis the allocator budgets against.
func (r *Runner) equity(epicBars map[string][]types.Bar, date time.Time) decimal.Decimal {
	total := r.cash
	for _, pos := range r.open {
		total = total.Add(pos.SizeEUR)
	}
	return total
}

// recordClose finalizes a closed position: removes it from the open set
// and appends the trade (cost model is applied in a later pass over the
// whole trade list, per spec §4.I step 7).
func (r *Runner) recordClose(epic string, trade types.Trade) {
	delete(r.open, epic)
	r.cash = r.cash.Add(trade.PositionSize).Add(trade.PnLGross)
	r.trades = append(r.trades, trade)
	r.sink.SaveTrade(trade)
}

func (r *Runner) closeAllOpenPositions(at time.Time, lastClose map[string]decimal.Decimal) {
	if len(r.open) == 0 {
		return
	}
	positions := make([]types.Position, 0, len(r.open))
	epics := make([]string, 0, len(r.open))
	for epic, pos := range r.open {
		positions = append(positions, pos)
		epics = append(epics, epic)
	}
	trades := position.CloseAll(positions, at, lastClose, r.regime)
	for i, trade := range trades {
		r.cash = r.cash.Add(trade.PositionSize).Add(trade.PnLGross)
		r.trades = append(r.trades, trade)
		r.sink.SaveTrade(trade)
		delete(r.open, epics[i])
	}
}

// applyCostsToAllTrades overwrites each trade's net PnL/PnL% with the
// cost model's result, per spec §4.I step 7.
func (r *Runner) applyCostsToAllTrades() {
	for i, trade := range r.trades {
		breakdown := r.costModel.Apply(trade.Epic, trade.Units, nil)
		net := trade.PnLGross.Sub(breakdown.Total)
		trade.PnL = net
		trade.Cost = breakdown
		if !trade.PositionSize.IsZero() {
			trade.PnLPercent = net.Div(trade.PositionSize).Mul(decimal.NewFromInt(100))
		}
		r.trades[i] = trade
	}
}

// unionDates returns the ascending, deduplicated set of calendar dates
// (UTC, truncated to midnight) covered by any epic's bars, filtered to
// [from, to] when those bounds are non-zero.
func unionDates(epicBars map[string][]types.Bar, from, to time.Time) []time.Time {
	seen := make(map[time.Time]bool)
	for _, bars := range epicBars {
		for _, bar := range bars {
			date := bar.Timestamp.UTC().Truncate(24 * time.Hour)
			if !from.IsZero() && date.Before(from.UTC().Truncate(24*time.Hour)) {
				continue
			}
			if !to.IsZero() && date.After(to.UTC().Truncate(24*time.Hour)) {
				continue
			}
			seen[date] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// barsOnDate buckets each epic's bars falling on the given UTC date.
func barsOnDate(epicBars map[string][]types.Bar, date time.Time) map[string][]types.Bar {
	out := make(map[string][]types.Bar, len(epicBars))
	dayStart := date.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	for epic, bars := range epicBars {
		var dayBars []types.Bar
		for _, bar := range bars {
			ts := bar.Timestamp.UTC()
			if !ts.Before(dayStart) && ts.Before(dayEnd) {
				dayBars = append(dayBars, bar)
			}
		}
		out[epic] = dayBars
	}
	return out
}

// lastCloseByEpic returns each epic's final observed close over the
// entire bar set, for the end-of-run forced close.
func lastCloseByEpic(epicBars map[string][]types.Bar, dates []time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(epicBars))
	for epic, bars := range epicBars {
		if len(bars) > 0 {
			out[epic] = bars[len(bars)-1].Close
		}
	}
	return out
}
