// Package risk supervises account health against daily, weekly,
// consecutive-loss and drawdown limits, tripping a circuit breaker that
// only an operator can reset (spec §4.H).
//
// The trip-condition checks (daily loss, 7-day rolling weekly loss,
// consecutive losses, drawdown from peak) are domain logic with no
// equivalent in gobreaker's generic failure-rate model; gobreaker is used
// as the externally-observable open/closed state machine the rest of the
// engine queries, with the domain checks deciding when to trip it.
package risk

import (
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// never is used as gobreaker's Timeout so the breaker never auto-recovers
// from Open to Half-Open on its own; recovery is exclusively through Reset.
const never = 100 * 365 * 24 * time.Hour

// Supervisor tracks balances and loss counters and trips a breaker when
// any configured limit is breached.
type Supervisor struct {
	config types.RiskConfig
	state  types.CircuitBreakerState
	breaker *gobreaker.CircuitBreaker
}

// NewSupervisor creates a risk supervisor initialized with startingBalance
// as both the initial and peak balance.
func NewSupervisor(config types.RiskConfig, startingBalance decimal.Decimal, now time.Time) *Supervisor {
	s := &Supervisor{
		config: config,
		state: types.CircuitBreakerState{
			InitialBalance:   startingBalance,
			CurrentBalance:   startingBalance,
			PeakBalance:      startingBalance,
			DailyAnchor:      startingBalance,
			DailyAnchorDate:  now.UTC().Truncate(24 * time.Hour),
			WeeklyAnchor:     startingBalance,
			WeeklyAnchorDate: now.UTC().Truncate(24 * time.Hour),
		},
	}
	s.breaker = newBreaker()
	return s
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "risk-supervisor",
		Timeout: never,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
}

// State returns a copy of the supervisor's current tracked state.
func (s *Supervisor) State() types.CircuitBreakerState {
	return s.state
}

// IsActive reports whether the circuit breaker is currently tripped.
func (s *Supervisor) IsActive() bool {
	return s.breaker.State() == gobreaker.StateOpen
}

// checkDailyReset rolls the daily anchor forward on a UTC date change.
func (s *Supervisor) checkDailyReset(now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	if !s.state.DailyAnchorDate.Equal(today) {
		s.state.DailyAnchor = s.state.CurrentBalance
		s.state.DailyAnchorDate = today
	}
}

// checkWeeklyReset rolls the weekly anchor forward on a 7-day rolling
// cadence since the last anchor (not a calendar week), per the original
// circuit breaker's "days_since_start >= 7" rule.
func (s *Supervisor) checkWeeklyReset(now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	if today.Sub(s.state.WeeklyAnchorDate) >= 7*24*time.Hour {
		s.state.WeeklyAnchor = s.state.CurrentBalance
		s.state.WeeklyAnchorDate = today
	}
}

// UpdateBalance records the current account balance, rolls the daily and
// weekly anchors if due, advances the peak, and re-evaluates the trip
// conditions in order: daily loss, weekly loss, consecutive losses,
// drawdown from peak.
func (s *Supervisor) UpdateBalance(balance decimal.Decimal, now time.Time) {
	s.checkDailyReset(now)
	s.checkWeeklyReset(now)

	s.state.CurrentBalance = balance
	if balance.GreaterThan(s.state.PeakBalance) {
		s.state.PeakBalance = balance
	}

	s.evaluate(now)
}

// RegisterTradeResult updates the consecutive-loss counter and
// re-evaluates trip conditions. A non-negative pnl resets the streak.
func (s *Supervisor) RegisterTradeResult(pnl decimal.Decimal, now time.Time) {
	if pnl.IsNegative() {
		s.state.ConsecutiveLosses++
	} else {
		s.state.ConsecutiveLosses = 0
	}
	s.evaluate(now)
}

// evaluate checks trip conditions in priority order and trips the
// breaker on the first breach encountered.
func (s *Supervisor) evaluate(now time.Time) {
	if s.state.Active {
		return
	}

	if reason, tripped := s.checkLimits(); tripped {
		s.trip(reason, now)
	}
}

func (s *Supervisor) checkLimits() (string, bool) {
	if !s.config.EnableCircuitBreaker {
		return "", false
	}

	if s.state.DailyAnchor.GreaterThan(decimal.Zero) {
		dailyLossPct := s.state.DailyAnchor.Sub(s.state.CurrentBalance).Div(s.state.DailyAnchor).Mul(decimal.NewFromInt(100))
		if dailyLossPct.GreaterThanOrEqual(s.config.MaxDailyLossPercent) {
			return "daily loss limit breached", true
		}
	}

	if s.state.WeeklyAnchor.GreaterThan(decimal.Zero) {
		weeklyLossPct := s.state.WeeklyAnchor.Sub(s.state.CurrentBalance).Div(s.state.WeeklyAnchor).Mul(decimal.NewFromInt(100))
		if weeklyLossPct.GreaterThanOrEqual(s.config.MaxWeeklyLossPercent) {
			return "weekly loss limit breached", true
		}
	}

	if s.config.MaxConsecutiveLosses > 0 && s.state.ConsecutiveLosses >= s.config.MaxConsecutiveLosses {
		return "consecutive loss limit breached", true
	}

	if s.state.PeakBalance.GreaterThan(decimal.Zero) {
		drawdownPct := s.state.PeakBalance.Sub(s.state.CurrentBalance).Div(s.state.PeakBalance).Mul(decimal.NewFromInt(100))
		if drawdownPct.GreaterThanOrEqual(s.config.MaxTotalDrawdownPercent) {
			return "drawdown from peak breached", true
		}
	}

	return "", false
}

// trip flips the breaker open and stamps the activation reason/time.
func (s *Supervisor) trip(reason string, now time.Time) {
	s.breaker.Execute(func() (interface{}, error) {
		return nil, errTrip
	})
	s.state.Active = true
	s.state.ActivationReason = reason
	s.state.ActivationTS = now
}

var errTrip = tripError{}

type tripError struct{}

func (tripError) Error() string { return "risk limit breached" }

// Reset manually clears the tripped state. This is the only path back to
// an operating circuit — there is no automatic recovery.
func (s *Supervisor) Reset() {
	s.breaker = newBreaker()
	s.state.Active = false
	s.state.ActivationReason = ""
	s.state.ActivationTS = time.Time{}
	s.state.ConsecutiveLosses = 0
}
