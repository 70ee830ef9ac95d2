// Package types provides configuration types for the intraday trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// UniverseConfig is the trading universe: which epics, at what resolution,
// during which hours, polled on what cadence (live mode only).
type UniverseConfig struct {
	Epics           []string      `mapstructure:"epics" json:"epics"`
	Resolution      string        `mapstructure:"resolution" json:"resolution"`
	TradingHourStart int          `mapstructure:"trading_hour_start" json:"tradingHourStart"`
	TradingHourEnd   int          `mapstructure:"trading_hour_end" json:"tradingHourEnd"`
	ScanInterval    time.Duration `mapstructure:"scan_interval" json:"scanInterval"`
}

// StrategyConfig is the multi-factor evaluator's tunable parameters (spec §4.C).
type StrategyConfig struct {
	RSIPeriod        int             `mapstructure:"rsi_period" json:"rsiPeriod"`
	RSIOversold      float64         `mapstructure:"rsi_oversold" json:"rsiOversold"`
	RSIOverbought    float64         `mapstructure:"rsi_overbought" json:"rsiOverbought"`
	MACDFast         int             `mapstructure:"macd_fast" json:"macdFast"`
	MACDSlow         int             `mapstructure:"macd_slow" json:"macdSlow"`
	MACDSignal       int             `mapstructure:"macd_signal" json:"macdSignal"`
	SMAShort         int             `mapstructure:"sma_short" json:"smaShort"`
	SMALong          int             `mapstructure:"sma_long" json:"smaLong"`
	MomentumPeriod   int             `mapstructure:"momentum_period" json:"momentumPeriod"`
	MinSignalsToTrade int            `mapstructure:"min_signals_to_trade" json:"minSignalsToTrade"`
	MinConfidence    float64         `mapstructure:"min_confidence" json:"minConfidence"`
	MTFEnabled       bool            `mapstructure:"mtf_enabled" json:"mtfEnabled"`
	MTFSlowResolution string         `mapstructure:"mtf_slow_resolution" json:"mtfSlowResolution"`
}

// FilterConfig is the volatility/trend-strength gating applied before scoring (spec §4.C, §4.B).
type FilterConfig struct {
	ATRPeriod       int     `mapstructure:"atr_period" json:"atrPeriod"`
	ATRMin          float64 `mapstructure:"atr_min" json:"atrMin"`
	ATRMax          float64 `mapstructure:"atr_max" json:"atrMax"`
	ATROptimalLow   float64 `mapstructure:"atr_optimal_low" json:"atrOptimalLow"`
	ATROptimalHigh  float64 `mapstructure:"atr_optimal_high" json:"atrOptimalHigh"`
	ADXPeriod       int     `mapstructure:"adx_period" json:"adxPeriod"`
	ADXMinTrend     float64 `mapstructure:"adx_min_trend" json:"adxMinTrend"`
	ADXStrong       float64 `mapstructure:"adx_strong" json:"adxStrong"`
	ADXEnabled      bool    `mapstructure:"adx_enabled" json:"adxEnabled"`
}

// CapitalConfig is the allocator + legacy capital-sizing configuration surface (spec §4.D, §6).
type CapitalConfig struct {
	Mode                    CapitalMode      `mapstructure:"mode" json:"mode"`
	MaxCapitalPercent       decimal.Decimal  `mapstructure:"max_capital_percent" json:"maxCapitalPercent"`
	MaxCapitalFixed         decimal.Decimal  `mapstructure:"max_capital_fixed" json:"maxCapitalFixed"`
	TargetPercentOfAvailable decimal.Decimal `mapstructure:"target_percent_of_available" json:"targetPercentOfAvailable"`
	DistributionMode        DistributionMode `mapstructure:"distribution_mode" json:"distributionMode"`
	UseCapitalTracker       bool             `mapstructure:"use_capital_tracker" json:"useCapitalTracker"`
	DailyBudgetPct          decimal.Decimal  `mapstructure:"daily_budget_pct" json:"dailyBudgetPct"`
	PerTradeCapPct          decimal.Decimal  `mapstructure:"per_trade_cap_pct" json:"perTradeCapPct"`
	MinAllocation           decimal.Decimal  `mapstructure:"min_allocation" json:"minAllocation"`
	AllowPartial            bool             `mapstructure:"allow_partial" json:"allowPartial"`
	SizeSafetyMargin        decimal.Decimal  `mapstructure:"size_safety_margin" json:"sizeSafetyMargin"`
	MaxMarginPerAsset       decimal.Decimal  `mapstructure:"max_margin_per_asset" json:"maxMarginPerAsset"`
	MaxPositions            int              `mapstructure:"max_positions" json:"maxPositions"`
	MinPositionSize         decimal.Decimal  `mapstructure:"min_position_size" json:"minPositionSize"`
	MaxCapitalRisk          decimal.Decimal  `mapstructure:"max_capital_risk" json:"maxCapitalRisk"`
}

// SLTPConfig configures static and ATR-adaptive stop-loss/take-profit (spec §4.F).
type SLTPConfig struct {
	Mode            SLTPMode        `mapstructure:"mode" json:"mode"`
	StaticBuySL     decimal.Decimal `mapstructure:"static_buy_sl" json:"staticBuySl"`
	StaticBuyTP     decimal.Decimal `mapstructure:"static_buy_tp" json:"staticBuyTp"`
	StaticSellSL    decimal.Decimal `mapstructure:"static_sell_sl" json:"staticSellSl"`
	StaticSellTP    decimal.Decimal `mapstructure:"static_sell_tp" json:"staticSellTp"`
	ATRSLMultiplier decimal.Decimal `mapstructure:"atr_sl_multiplier" json:"atrSlMultiplier"`
	ATRTPMultiplier decimal.Decimal `mapstructure:"atr_tp_multiplier" json:"atrTpMultiplier"`
}

// InstrumentCostOverride overrides the global cost model for one epic.
type InstrumentCostOverride struct {
	CommissionPerTrade decimal.Decimal `mapstructure:"commission_per_trade" json:"commissionPerTrade"`
	SpreadInPoints     decimal.Decimal `mapstructure:"spread_in_points" json:"spreadInPoints"`
	PointValue         decimal.Decimal `mapstructure:"point_value" json:"pointValue"`
}

// CostConfig is the commission + spread model configuration (spec §4.G).
type CostConfig struct {
	CommissionPerTrade decimal.Decimal                    `mapstructure:"commission_per_trade" json:"commissionPerTrade"`
	SpreadInPointsDefault decimal.Decimal                 `mapstructure:"spread_in_points_default" json:"spreadInPointsDefault"`
	PointValueDefault  decimal.Decimal                    `mapstructure:"point_value_default" json:"pointValueDefault"`
	ApplySpread        ApplySpreadMode                    `mapstructure:"apply_spread" json:"applySpread"`
	Overrides          map[string]InstrumentCostOverride  `mapstructure:"overrides" json:"overrides"`
}

// RegimeConfig configures the ATR%/ADX regime detector and its optional filter (spec §4.B).
type RegimeConfig struct {
	FilterEnabled   bool            `mapstructure:"filter_enabled" json:"filterEnabled"`
	FilterBlock     RegimeLabel     `mapstructure:"filter_block" json:"filterBlock"`
	ATRPeriod       int             `mapstructure:"atr_period" json:"atrPeriod"`
	ATRThresholdPct decimal.Decimal `mapstructure:"atr_threshold_pct" json:"atrThresholdPct"`
	ADXThreshold    decimal.Decimal `mapstructure:"adx_threshold" json:"adxThreshold"`
}

// RiskConfig configures the circuit breaker's trip thresholds (spec §4.H).
type RiskConfig struct {
	EnableCircuitBreaker     bool            `mapstructure:"enable_circuit_breaker" json:"enableCircuitBreaker"`
	MaxDailyLossPercent      decimal.Decimal `mapstructure:"max_daily_loss_percent" json:"maxDailyLossPercent"`
	MaxWeeklyLossPercent     decimal.Decimal `mapstructure:"max_weekly_loss_percent" json:"maxWeeklyLossPercent"`
	MaxConsecutiveLosses     int             `mapstructure:"max_consecutive_losses" json:"maxConsecutiveLosses"`
	MaxTotalDrawdownPercent  decimal.Decimal `mapstructure:"max_total_drawdown_percent" json:"maxTotalDrawdownPercent"`
}

// BacktestConfig is the full configuration for one backtest (or live) run,
// composing every configuration surface enumerated in spec §6.
type BacktestConfig struct {
	ID             string          `json:"id"`
	Universe       UniverseConfig  `mapstructure:"universe" json:"universe"`
	Strategy       StrategyConfig  `mapstructure:"strategy" json:"strategy"`
	Filter         FilterConfig    `mapstructure:"filter" json:"filter"`
	Capital        CapitalConfig   `mapstructure:"capital" json:"capital"`
	SLTP           SLTPConfig      `mapstructure:"sltp" json:"sltp"`
	Cost           CostConfig      `mapstructure:"cost" json:"cost"`
	Regime         RegimeConfig    `mapstructure:"regime" json:"regime"`
	Risk           RiskConfig      `mapstructure:"risk" json:"risk"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	InitialCapital decimal.Decimal `json:"initialCapital"`
}

// ServerConfig configures the reference HTTP/WebSocket adapter (spec §13).
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MetricsPort    int           `json:"metricsPort"`
}

// DataConfig configures the historical bar store collaborator (external, thin reference only).
type DataConfig struct {
	DataDir      string `json:"dataDir"`
	CacheSize    int    `json:"cacheSize"`
	UseMemoryMap bool   `json:"useMemoryMap"`
}
