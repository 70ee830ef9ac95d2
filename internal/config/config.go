// Package config loads a BacktestConfig from a file, environment
// variables, and defaults via viper, and validates the surface against the
// domain's non-negotiable invariants.
package config

import (
	"strings"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/engineerrors"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Load reads configuration from path (if non-empty), environment variables
// prefixed INTRADAY_, and the defaults below, into a BacktestConfig.
func Load(path string) (types.BacktestConfig, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("INTRADAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return types.BacktestConfig{}, engineerrors.Wrap(err, "", time.Now())
		}
	}

	var cfg types.BacktestConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return types.BacktestConfig{}, engineerrors.Wrap(err, "", time.Now())
	}

	if err := Validate(cfg); err != nil {
		return types.BacktestConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("universe.resolution", "1h")
	v.SetDefault("universe.trading_hour_start", 9)
	v.SetDefault("universe.trading_hour_end", 22)
	v.SetDefault("universe.scan_interval", "1m")

	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.rsi_oversold", 30.0)
	v.SetDefault("strategy.rsi_overbought", 70.0)
	v.SetDefault("strategy.macd_fast", 12)
	v.SetDefault("strategy.macd_slow", 26)
	v.SetDefault("strategy.macd_signal", 9)
	v.SetDefault("strategy.sma_short", 10)
	v.SetDefault("strategy.sma_long", 30)
	v.SetDefault("strategy.momentum_period", 10)
	v.SetDefault("strategy.min_signals_to_trade", 2)
	v.SetDefault("strategy.min_confidence", 0.0)

	v.SetDefault("filter.atr_period", 14)
	v.SetDefault("filter.atr_min", 0.5)
	v.SetDefault("filter.atr_max", 5.0)
	v.SetDefault("filter.atr_optimal_low", 1.0)
	v.SetDefault("filter.atr_optimal_high", 3.0)
	v.SetDefault("filter.adx_period", 14)
	v.SetDefault("filter.adx_min_trend", 20.0)
	v.SetDefault("filter.adx_strong", 40.0)
	v.SetDefault("filter.adx_enabled", true)

	v.SetDefault("capital.daily_budget_pct", "0.05")
	v.SetDefault("capital.per_trade_cap_pct", "0.02")
	v.SetDefault("capital.min_allocation", "10")
	v.SetDefault("capital.allow_partial", true)
	v.SetDefault("capital.max_positions", 10)

	v.SetDefault("sltp.mode", "STATIC")
	v.SetDefault("sltp.static_buy_sl", "0.02")
	v.SetDefault("sltp.static_buy_tp", "0.04")
	v.SetDefault("sltp.static_sell_sl", "0.02")
	v.SetDefault("sltp.static_sell_tp", "0.04")
	v.SetDefault("sltp.atr_sl_multiplier", "1.5")
	v.SetDefault("sltp.atr_tp_multiplier", "3.0")

	v.SetDefault("cost.commission_per_trade", "5")
	v.SetDefault("cost.spread_in_points_default", "2")
	v.SetDefault("cost.point_value_default", "1")
	v.SetDefault("cost.apply_spread", "both")

	v.SetDefault("regime.filter_enabled", false)
	v.SetDefault("regime.filter_block", "lateral")
	v.SetDefault("regime.atr_period", 14)
	v.SetDefault("regime.atr_threshold_pct", "0.5")
	v.SetDefault("regime.adx_threshold", "25")

	v.SetDefault("risk.enable_circuit_breaker", true)
	v.SetDefault("risk.max_daily_loss_percent", "5")
	v.SetDefault("risk.max_weekly_loss_percent", "10")
	v.SetDefault("risk.max_consecutive_losses", 5)
	v.SetDefault("risk.max_total_drawdown_percent", "20")
}

// Validate enforces the configuration invariants the core cannot safely
// run without: non-empty universe, sane SMA/MACD period ordering, positive
// initial capital, non-negative budget/per-trade percentages. Returns the
// bare engineerrors.ErrConfigurationInvalid sentinel on the first
// violation found.
func Validate(cfg types.BacktestConfig) error {
	if len(cfg.Universe.Epics) == 0 {
		return engineerrors.ErrConfigurationInvalid
	}
	if cfg.Strategy.SMAShort <= 0 || cfg.Strategy.SMALong <= 0 || cfg.Strategy.SMAShort >= cfg.Strategy.SMALong {
		return engineerrors.ErrConfigurationInvalid
	}
	if cfg.Strategy.MACDFast <= 0 || cfg.Strategy.MACDSlow <= 0 || cfg.Strategy.MACDFast >= cfg.Strategy.MACDSlow {
		return engineerrors.ErrConfigurationInvalid
	}
	if cfg.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return engineerrors.ErrConfigurationInvalid
	}
	if cfg.Capital.DailyBudgetPct.IsNegative() || cfg.Capital.PerTradeCapPct.IsNegative() {
		return engineerrors.ErrConfigurationInvalid
	}
	return nil
}
