// Package liveloop drives the same components A-J as the backtest
// simulation loop, but against wall-clock time and a broker's live bar
// feed: bars are fetched on a configurable cadence, equity/trade records
// persist immediately, and entries are gated to trading hours (spec §4.L).
package liveloop

import (
	"context"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/allocator"
	"github.com/juanpimr2/intraday-engine/internal/botstate"
	"github.com/juanpimr2/intraday-engine/internal/costs"
	"github.com/juanpimr2/intraday-engine/internal/instrument"
	"github.com/juanpimr2/intraday-engine/internal/position"
	"github.com/juanpimr2/intraday-engine/internal/regime"
	"github.com/juanpimr2/intraday-engine/internal/risk"
	"github.com/juanpimr2/intraday-engine/internal/simulation"
	"github.com/juanpimr2/intraday-engine/internal/strategy"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// LiveBarSource fetches the most recent bars for an epic on every tick,
// mirroring spec §6's BarSource.fetch_latest.
type LiveBarSource interface {
	FetchLatest(epic string, resolution string) ([]types.Bar, error)
}

// AccountSource reports the broker account's balance, per spec §6.
type AccountSource interface {
	Snapshot() (balance, available decimal.Decimal, err error)
}

// OrderRouter places and closes orders against a broker, per spec §6
// ("in simulation, the simulation loop substitutes its own router").
// When set on a Loop, opens and closes route through it and use its
// reported fill/exit levels instead of the signal/monitor price; when
// nil, the loop fills at the signal or stop/take-profit price directly,
// the same as a backtest run.
type OrderRouter interface {
	Place(epic string, direction types.Direction, units decimal.Decimal) (dealReference string, filledLevel decimal.Decimal, err error)
	Close(dealReference string) (exitLevel decimal.Decimal, err error)
}

// TradingHours is the local window entries are gated to (spec §4.L).
type TradingHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultTradingHours returns the default 09-22 local, Mon-Fri window.
func DefaultTradingHours() TradingHours {
	return TradingHours{StartHour: 9, EndHour: 22, Location: time.Local}
}

// within reports whether now falls inside the trading window.
func (h TradingHours) within(now time.Time) bool {
	local := now.In(h.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return local.Hour() >= h.StartHour && local.Hour() < h.EndHour
}

// Loop drives one dedicated worker over an epic universe, ticking on
// ScanInterval, cooperatively cancellable via context.
type Loop struct {
	config  types.BacktestConfig
	bars    LiveBarSource
	sink    simulation.Sink
	account AccountSource
	router  OrderRouter
	hours   TradingHours
	state   *botstate.State

	regime    *regime.Detector
	evaluator *strategy.Evaluator
	allocator *allocator.Allocator
	instr     *instrument.Model
	posMgr    *position.Manager
	costModel *costs.Model
	risk      *risk.Supervisor

	open     map[string]types.Position
	dealRefs map[string]string
	cash     decimal.Decimal
}

// NewLoop wires every collaborator for live operation.
func NewLoop(config types.BacktestConfig, bars LiveBarSource, sink simulation.Sink, hours TradingHours, startingBalance decimal.Decimal) *Loop {
	if sink == nil {
		sink = simulation.NoopSink{}
	}

	regimeDetector := regime.NewDetector(regime.Config{
		ATRPeriod:       config.Regime.ATRPeriod,
		ATRThresholdPct: config.Regime.ATRThresholdPct,
		ADXThreshold:    config.Regime.ADXThreshold,
	})

	return &Loop{
		config:    config,
		bars:      bars,
		sink:      sink,
		hours:     hours,
		state:     botstate.New(),
		regime:    regimeDetector,
		evaluator: strategy.NewEvaluator(strategyConfigFrom(config), regimeDetector),
		allocator: allocator.NewAllocator(allocator.Config{
			DailyBudgetPct: config.Capital.DailyBudgetPct,
			PerTradeCapPct: config.Capital.PerTradeCapPct,
			MinAllocation:  config.Capital.MinAllocation,
			AllowPartial:   config.Capital.AllowPartial,
		}),
		instr:     instrument.NewModel(nil),
		posMgr:    position.NewManager(config.SLTP),
		costModel: costs.NewModel(config.Cost),
		risk:      risk.NewSupervisor(config.Risk, startingBalance, time.Now()),
		open:      make(map[string]types.Position),
		dealRefs:  make(map[string]string),
		cash:      startingBalance,
	}
}

func strategyConfigFrom(config types.BacktestConfig) strategy.Config {
	return strategy.Config{
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
}

// State exposes the loop's bot-state controller for dashboard start/stop.
func (l *Loop) State() *botstate.State {
	return l.state
}

// SetSink replaces the destination for trades, equity points, and signals
// emitted by ticks from this point on. Used by cmd/live to attach the API
// server's broadcast sink once the server has been constructed from this
// same Loop, a dependency order sink-at-construction can't satisfy.
func (l *Loop) SetSink(sink simulation.Sink) {
	if sink == nil {
		sink = simulation.NoopSink{}
	}
	l.sink = sink
}

// SetAccountSource attaches a broker account feed. When set, each tick
// reconciles the loop's cash against the broker's reported available
// balance before allocating, instead of trusting locally-accumulated cash
// alone. Optional: nil leaves cash purely locally tracked.
func (l *Loop) SetAccountSource(account AccountSource) {
	l.account = account
}

// SetOrderRouter attaches a broker order router. When set, opens and
// closes route through it; left nil, the loop fills locally the same as
// a backtest run.
func (l *Loop) SetOrderRouter(router OrderRouter) {
	l.router = router
}

// Run blocks, ticking on config.Universe.ScanInterval, until ctx is
// cancelled. Each tick only performs work when the bot state is running;
// the heartbeat updates on every tick regardless (spec §4.K).
func (l *Loop) Run(ctx context.Context) {
	interval := l.config.Universe.ScanInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.state.UpdateHeartbeat(now)
			if !l.state.IsRunning() {
				continue
			}
			l.tick(now)
		}
	}
}

// tick fetches the latest bars for every epic and runs one pass of the
// §4.I phase sequence against wall-clock "now", gated by trading hours.
func (l *Loop) tick(now time.Time) {
	if l.account != nil {
		if _, available, err := l.account.Snapshot(); err == nil {
			l.cash = available
		}
	}

	epicBars := make(map[string][]types.Bar, len(l.config.Universe.Epics))
	for _, epic := range l.config.Universe.Epics {
		bars, err := l.bars.FetchLatest(epic, l.config.Universe.Resolution)
		if err != nil {
			continue
		}
		epicBars[epic] = bars
		l.regime.Precompute(epic, bars)
	}

	// Update phase: monitor open positions against the latest bar.
	for epic, pos := range l.open {
		bars := epicBars[epic]
		if len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		if reason, price := position.Monitor(pos, last); reason != "" {
			if l.router != nil {
				if ref, ok := l.dealRefs[epic]; ok {
					if exitLevel, err := l.router.Close(ref); err == nil {
						price = exitLevel
					}
					delete(l.dealRefs, epic)
				}
			}
			trade := position.Close(pos, now, price, reason, l.regime)
			breakdown := l.costModel.Apply(epic, trade.Units, nil)
			trade.PnL = trade.PnLGross.Sub(breakdown.Total)
			trade.Cost = breakdown
			l.cash = l.cash.Add(trade.PositionSize).Add(trade.PnL)
			l.risk.RegisterTradeResult(trade.PnL, now)
			l.sink.SaveTrade(trade)
			delete(l.open, epic)
			continue
		}
		pos.CurrentPrice = last.Close
		l.open[epic] = pos
	}

	if !l.hours.within(now) {
		l.persistEquity(now)
		return
	}

	// Signal phase.
	var signals []types.Signal
	for epic, bars := range epicBars {
		if len(bars) == 0 {
			continue
		}
		sig := l.evaluator.Evaluate(epic, bars, nil)
		if sig.Direction == types.DirectionNeutral {
			continue
		}
		if strategy.RegimeFiltered(sig, l.config.Regime.FilterBlock, l.config.Regime.FilterEnabled) {
			continue
		}
		l.sink.SaveSignal(sig)
		signals = append(signals, sig)
	}

	// Risk gate.
	if l.risk.IsActive() {
		l.persistEquity(now)
		return
	}

	// Allocate + open phases.
	equity := l.cash
	for _, pos := range l.open {
		equity = equity.Add(pos.SizeEUR)
	}
	allocations := l.allocator.AllocateForSignals(equity, signals, now)

	for _, sig := range signals {
		allocated, ok := allocations[sig.Epic]
		if !ok || allocated.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if _, alreadyOpen := l.open[sig.Epic]; alreadyOpen {
			continue
		}
		if l.config.Capital.MaxPositions > 0 && len(l.open) >= l.config.Capital.MaxPositions {
			continue
		}
		if l.cash.LessThan(allocated) {
			continue
		}

		sizing := l.instr.PositionSize(sig.Epic, sig.CurrentPrice, allocated)
		if l.router != nil {
			ref, filled, err := l.router.Place(sig.Epic, sig.Direction, sizing.Units)
			if err != nil {
				continue
			}
			l.dealRefs[sig.Epic] = ref
			sig.CurrentPrice = filled
		}
		pos := l.posMgr.Build(sig, sizing.Units, allocated, epicBars[sig.Epic])
		pos = position.Open(pos)

		l.open[sig.Epic] = pos
		l.cash = l.cash.Sub(allocated)
		l.allocator.RecordFill(sig.Epic, allocated, now)
	}

	l.persistEquity(now)
}

func (l *Loop) persistEquity(now time.Time) {
	var unrealized decimal.Decimal
	for _, pos := range l.open {
		var legPnL decimal.Decimal
		if pos.Direction == types.DirectionBuy {
			legPnL = pos.CurrentPrice.Sub(pos.EntryPrice).Mul(pos.Units)
		} else {
			legPnL = pos.EntryPrice.Sub(pos.CurrentPrice).Mul(pos.Units)
		}
		unrealized = unrealized.Add(pos.SizeEUR).Add(legPnL)
	}
	equity := l.cash.Add(unrealized)
	l.sink.SaveEquityPoint(types.EquityPoint{
		Timestamp:         now,
		Equity:            equity,
		Cash:              l.cash,
		OpenPositionCount: len(l.open),
	})
	l.risk.UpdateBalance(equity, now)
}
