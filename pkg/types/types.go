// Package types provides shared type definitions for the intraday trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the outcome of the strategy evaluator for one epic/bar-subset.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// RegimeLabel classifies a bar as trending or range-bound.
type RegimeLabel string

const (
	RegimeTrending RegimeLabel = "trending"
	RegimeLateral  RegimeLabel = "lateral"
)

// ExitReason is why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitEndOfRun   ExitReason = "END_OF_RUN"
	ExitManual     ExitReason = "MANUAL"
)

// PositionStatus is the lifecycle stage of a Position.
type PositionStatus string

const (
	PositionPlanned PositionStatus = "planned"
	PositionOpen    PositionStatus = "open"
	PositionClosed  PositionStatus = "closed"
)

// SessionBucket is a Europe/Madrid trading-hours bucket used by the metrics engine.
type SessionBucket string

const (
	SessionUSOpen SessionBucket = "us_open"
	SessionEUOpen SessionBucket = "eu_open"
	SessionEUPm   SessionBucket = "eu_pm"
	SessionUSPm   SessionBucket = "us_pm"
	SessionOther  SessionBucket = "other"
)

// IntradayBucket is a coarse time-of-day classification.
type IntradayBucket string

const (
	BucketMorning   IntradayBucket = "morning"
	BucketAfternoon IntradayBucket = "afternoon"
	BucketEvening   IntradayBucket = "evening"
)

// SLTPMode selects between static and ATR-adaptive stop-loss/take-profit.
type SLTPMode string

const (
	SLTPStatic  SLTPMode = "STATIC"
	SLTPDynamic SLTPMode = "DYNAMIC"
)

// CapitalMode selects between percentage-of-equity and fixed-amount capital budgets.
type CapitalMode string

const (
	CapitalModePercentage CapitalMode = "PERCENTAGE"
	CapitalModeFixed      CapitalMode = "FIXED"
)

// DistributionMode selects how the legacy per-slot budget is spread across signals.
type DistributionMode string

const (
	DistributionEqual    DistributionMode = "EQUAL"
	DistributionWeighted DistributionMode = "WEIGHTED"
)

// ApplySpreadMode controls how spread cost is attributed across entry/exit.
type ApplySpreadMode string

const (
	ApplySpreadOnce ApplySpreadMode = "once"
	ApplySpreadBoth ApplySpreadMode = "both"
	ApplySpreadNone ApplySpreadMode = "none"
)

// Bar is a single OHLC(V) sample for one epic at one resolution.
// Bars are immutable once ingested; a series must be strictly monotonic in
// Timestamp with no duplicates and no NaN in Close.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// IndicatorSnapshot is the indicator values attached to a Signal at evaluation time.
type IndicatorSnapshot struct {
	RSI          float64 `json:"rsi"`
	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macdSignal"`
	MACDHist     float64 `json:"macdHist"`
	SMAShort     float64 `json:"smaShort"`
	SMALong      float64 `json:"smaLong"`
	Momentum     float64 `json:"momentum"`
	ATRPercent   float64 `json:"atrPercent"`
	ADX          float64 `json:"adx"`
	PlusDI       float64 `json:"plusDi"`
	MinusDI      float64 `json:"minusDi"`
}

// Signal is produced per epic per bar-subset by the strategy evaluator.
// NEUTRAL signals always carry Confidence 0 and are never allocated capital.
type Signal struct {
	Epic          string            `json:"epic"`
	Timestamp     time.Time         `json:"timestamp"`
	Direction     Direction         `json:"direction"`
	Confidence    float64           `json:"confidence"`
	CurrentPrice  decimal.Decimal   `json:"currentPrice"`
	Reasons       []string          `json:"reasons"`
	Indicators    IndicatorSnapshot `json:"indicators"`
	Regime        RegimeLabel       `json:"regime"`
}

// InstrumentSpec holds the per-epic trading constraints, lazily acquired
// from the broker collaborator and cached by the instrument model.
type InstrumentSpec struct {
	Epic       string          `json:"epic"`
	Leverage   decimal.Decimal `json:"leverage,omitempty"`
	MarginRate decimal.Decimal `json:"marginRate,omitempty"`
	MinSize    decimal.Decimal `json:"minSize"`
	StepSize   decimal.Decimal `json:"stepSize"`
	Precision  int32           `json:"precision"`
	// Fallback records whether this spec is the conservative default
	// (broker lookup unavailable) rather than a broker-confirmed spec.
	Fallback bool `json:"fallback"`
}

// Position is an exposure owned exclusively by the position manager while
// open; on close it is handed to the metrics engine as a Trade.
type Position struct {
	Epic       string          `json:"epic"`
	Status     PositionStatus  `json:"status"`
	Direction  Direction       `json:"direction"`
	EntryTS    time.Time       `json:"entryTs"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Units      decimal.Decimal `json:"units"`
	SizeEUR    decimal.Decimal `json:"sizeEur"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
	Confidence float64         `json:"confidence"`
	Regime     RegimeLabel     `json:"regime"`
	// CurrentPrice is the latest mark-to-market close observed while open.
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// CostBreakdown reports the cost model's attribution of spread cost across
// entry and exit legs, for auditability; the total is mode-invariant
// between "once" and "both" (see DESIGN.md's Open Question decisions).
type CostBreakdown struct {
	Commission  decimal.Decimal `json:"costCommission"`
	SpreadEntry decimal.Decimal `json:"costSpreadEntry"`
	SpreadExit  decimal.Decimal `json:"costSpreadExit"`
	Total       decimal.Decimal `json:"costTotal"`
}

// Trade is an immutable closed Position with exit data and cost-adjusted PnL.
type Trade struct {
	Epic          string          `json:"epic"`
	Direction     Direction       `json:"direction"`
	EntryTS       time.Time       `json:"entryDate"`
	ExitTS        time.Time       `json:"exitDate"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	ExitPrice     decimal.Decimal `json:"exitPrice"`
	Units         decimal.Decimal `json:"units"`
	PositionSize  decimal.Decimal `json:"positionSize"`
	PnLGross      decimal.Decimal `json:"-"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPercent    decimal.Decimal `json:"pnlPercent"`
	ExitReason    ExitReason      `json:"exitReason"`
	Confidence    float64         `json:"confidence"`
	DurationHours float64         `json:"durationHours"`
	DayOfWeek     string          `json:"dayOfWeek"`
	HourOfDay     int             `json:"hourOfDay"`
	RegimeAtEntry RegimeLabel     `json:"-"`
	Regime        RegimeLabel     `json:"regime"`
	Cost          CostBreakdown   `json:"-"`
}

// EquityPoint is one sample of the strictly time-ordered equity curve.
type EquityPoint struct {
	Timestamp         time.Time       `json:"date"`
	Equity            decimal.Decimal `json:"equity"`
	Cash              decimal.Decimal `json:"cash"`
	OpenPositionCount int             `json:"openPositions"`
}

// AllocatorState is the capital allocator's per-day spend tracking.
type AllocatorState struct {
	LastResetDate time.Time       `json:"lastResetDate"`
	SpentToday    decimal.Decimal `json:"spentToday"`
}

// CircuitBreakerState is the risk supervisor's tracked balances and counters.
type CircuitBreakerState struct {
	InitialBalance    decimal.Decimal `json:"initialBalance"`
	CurrentBalance    decimal.Decimal `json:"currentBalance"`
	PeakBalance       decimal.Decimal `json:"peakBalance"`
	DailyAnchor       decimal.Decimal `json:"dailyAnchor"`
	DailyAnchorDate   time.Time       `json:"dailyAnchorDate"`
	WeeklyAnchor      decimal.Decimal `json:"weeklyAnchor"`
	WeeklyAnchorDate  time.Time       `json:"weeklyAnchorDate"`
	ConsecutiveLosses int             `json:"consecutiveLosses"`
	Active            bool            `json:"active"`
	ActivationReason  string          `json:"activationReason,omitempty"`
	ActivationTS      time.Time       `json:"activationTs,omitempty"`
}

// BucketStats aggregates trades within a temporal or regime bucket.
type BucketStats struct {
	TotalTrades  int             `json:"totalTrades"`
	WinRate      decimal.Decimal `json:"winRate"`
	ProfitFactor decimal.Decimal `json:"profitFactor"`
	TotalPnL     decimal.Decimal `json:"totalPnl"`
	AvgPnL       decimal.Decimal `json:"avgPnl"`
}

// TemporalBuckets groups BucketStats by day-of-week, intraday window,
// session, and regime.
type TemporalBuckets struct {
	ByDay    map[string]BucketStats `json:"byDay"`
	ByHour   map[string]BucketStats `json:"byHour"`
	BySession map[string]BucketStats `json:"bySession"`
	ByRegime map[string]BucketStats `json:"byRegime"`
}

// CapitalSummary is the §3 BacktestResult "capital" group.
type CapitalSummary struct {
	Initial           decimal.Decimal `json:"initial"`
	Final             decimal.Decimal `json:"final"`
	TotalReturn       decimal.Decimal `json:"totalReturn"`
	TotalReturnPercent decimal.Decimal `json:"totalReturnPercent"`
	CAGR              decimal.Decimal `json:"cagr"`
}

// TradeSummary is the §3 BacktestResult "trades" group.
type TradeSummary struct {
	TotalTrades        int             `json:"totalTrades"`
	WinningTrades      int             `json:"winningTrades"`
	LosingTrades       int             `json:"losingTrades"`
	WinRate            decimal.Decimal `json:"winRate"`
	AvgWin             decimal.Decimal `json:"avgWin"`
	AvgLoss            decimal.Decimal `json:"avgLoss"`
	LargestWin         decimal.Decimal `json:"largestWin"`
	LargestLoss        decimal.Decimal `json:"largestLoss"`
	ProfitFactor       decimal.Decimal `json:"profitFactor"`
	MaxConsecutiveWins int             `json:"maxConsecutiveWins"`
	MaxConsecutiveLoss int             `json:"maxConsecutiveLosses"`
}

// DrawdownSummary is the §3 BacktestResult "drawdown" group.
type DrawdownSummary struct {
	MaxDrawdownPercent     decimal.Decimal `json:"maxDrawdownPercent"`
	AvgDrawdownPercent     decimal.Decimal `json:"avgDrawdownPercent"`
	MaxDrawdownDurationDays int            `json:"maxDrawdownDurationDays"`
}

// RiskSummary is the §3 BacktestResult "risk" group.
type RiskSummary struct {
	SharpeRatio        decimal.Decimal `json:"sharpeRatio"`
	SortinoRatio       decimal.Decimal `json:"sortinoRatio"`
	CalmarRatio        decimal.Decimal `json:"calmarRatio"`
	MAR                decimal.Decimal `json:"mar"`
	AnnualizedVolatility decimal.Decimal `json:"annualizedVolatility"`
}

// BacktestResult is the aggregate result record for one simulation run.
type BacktestResult struct {
	ID       string            `json:"id"`
	Capital  CapitalSummary    `json:"capital"`
	Trades   TradeSummary      `json:"trades"`
	Drawdown DrawdownSummary   `json:"drawdown"`
	Risk     RiskSummary       `json:"risk"`
	Temporal TemporalBuckets   `json:"temporal"`
	EquityCurve  []EquityPoint `json:"equityCurve"`
	DailyReturns []float64     `json:"dailyReturns"`
	TradeList    []Trade       `json:"trades_list"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// BacktestProgress is a progress record shape for a running backtest. No
// code in this module constructs or sends one.
type BacktestProgress struct {
	ID            string    `json:"id"`
	CurrentDate   time.Time `json:"currentDate"`
	DatesTotal    int       `json:"datesTotal"`
	DatesDone     int       `json:"datesDone"`
	OpenPositions int       `json:"openPositions"`
	TradesClosed  int       `json:"tradesClosed"`
}
