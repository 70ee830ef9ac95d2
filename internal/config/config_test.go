package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

func validConfig() types.BacktestConfig {
	return types.BacktestConfig{
		Universe:       types.UniverseConfig{Epics: []string{"E"}},
		Strategy:       types.StrategyConfig{SMAShort: 10, SMALong: 30, MACDFast: 12, MACDSlow: 26},
		InitialCapital: decimal.NewFromInt(10000),
		Capital:        types.CapitalConfig{DailyBudgetPct: decimal.NewFromFloat(0.05), PerTradeCapPct: decimal.NewFromFloat(0.02)},
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_RejectsEmptyUniverse(t *testing.T) {
	cfg := validConfig()
	cfg.Universe.Epics = nil
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected an error for an empty universe")
	}
}

func TestValidate_RejectsInvertedSMAPeriods(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.SMAShort = 30
	cfg.Strategy.SMALong = 10
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected an error when SMA short >= SMA long")
	}
}

func TestValidate_RejectsNonPositiveInitialCapital(t *testing.T) {
	cfg := validConfig()
	cfg.InitialCapital = decimal.Zero
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected an error for non-positive initial capital")
	}
}

func TestLoad_AppliesDefaultsAroundAMinimalConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "universe:\n  epics: [\"EURUSD\"]\ninitialcapital: \"10000\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy.SMALong != 30 {
		t.Fatalf("SMA long default = %d, want 30", cfg.Strategy.SMALong)
	}
	if len(cfg.Universe.Epics) != 1 || cfg.Universe.Epics[0] != "EURUSD" {
		t.Fatalf("universe epics = %v, want [EURUSD]", cfg.Universe.Epics)
	}
}
