package costs

import (
	"testing"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

func baseConfig() types.CostConfig {
	return types.CostConfig{
		CommissionPerTrade:    decimal.NewFromFloat(5),
		SpreadInPointsDefault: decimal.NewFromFloat(2),
		PointValueDefault:     decimal.NewFromFloat(1),
		ApplySpread:           types.ApplySpreadBoth,
	}
}

// Scenario 6 (spec §8), exact inputs: units=2, spread_points=0.8,
// point_value=10, commission=0.5 -> cost_spread = 0.8*10*2*1.0 = 16.0
// (entry 8 + exit 8), cost_total = 16.5.
func TestApply_BothModeScenario6Arithmetic(t *testing.T) {
	cfg := types.CostConfig{
		CommissionPerTrade:    decimal.NewFromFloat(0.5),
		SpreadInPointsDefault: decimal.NewFromFloat(0.8),
		PointValueDefault:     decimal.NewFromFloat(10),
		ApplySpread:           types.ApplySpreadBoth,
	}
	m := NewModel(cfg)
	breakdown := m.Apply("E", decimal.NewFromInt(2), nil)

	if !breakdown.SpreadEntry.Equal(decimal.NewFromFloat(8)) {
		t.Fatalf("spread entry = %v, want 8", breakdown.SpreadEntry)
	}
	if !breakdown.SpreadExit.Equal(decimal.NewFromFloat(8)) {
		t.Fatalf("spread exit = %v, want 8", breakdown.SpreadExit)
	}
	if !breakdown.Total.Equal(decimal.NewFromFloat(16.5)) {
		t.Fatalf("total = %v, want 16.5 (0.5 commission + 16.0 spread)", breakdown.Total)
	}
}

func TestApply_SpreadScalesWithUnits(t *testing.T) {
	m := NewModel(baseConfig())
	one := m.Apply("E", decimal.NewFromInt(1), nil)
	three := m.Apply("E", decimal.NewFromInt(3), nil)

	if !three.Total.Sub(one.Total).Equal(decimal.NewFromFloat(4)) {
		t.Fatalf("tripling units should add 2x the base spread cost (2 per extra unit), got delta %v", three.Total.Sub(one.Total))
	}
}

func TestApply_NegativeUnitsUseAbsoluteValue(t *testing.T) {
	m := NewModel(baseConfig())
	long := m.Apply("E", decimal.NewFromInt(2), nil)
	short := m.Apply("E", decimal.NewFromInt(-2), nil)

	if !long.Total.Equal(short.Total) {
		t.Fatalf("short and long cost should match in magnitude: long=%v short=%v", long.Total, short.Total)
	}
}

func TestApply_BothModeSplitsSpreadEvenly(t *testing.T) {
	m := NewModel(baseConfig())
	breakdown := m.Apply("E", decimal.NewFromInt(1), nil)

	if !breakdown.SpreadEntry.Equal(decimal.NewFromFloat(1)) {
		t.Fatalf("spread entry = %v, want 1 (half of 2)", breakdown.SpreadEntry)
	}
	if !breakdown.SpreadExit.Equal(decimal.NewFromFloat(1)) {
		t.Fatalf("spread exit = %v, want 1 (half of 2)", breakdown.SpreadExit)
	}
	if !breakdown.Total.Equal(decimal.NewFromFloat(7)) {
		t.Fatalf("total = %v, want 7 (5 commission + 2 spread)", breakdown.Total)
	}
}

func TestApply_OnceModeAndBothModeShareTheSameTotal(t *testing.T) {
	onceCfg := baseConfig()
	onceCfg.ApplySpread = types.ApplySpreadOnce
	bothCfg := baseConfig()
	bothCfg.ApplySpread = types.ApplySpreadBoth

	onceTotal := NewModel(onceCfg).Apply("E", decimal.NewFromInt(1), nil).Total
	bothTotal := NewModel(bothCfg).Apply("E", decimal.NewFromInt(1), nil).Total

	if !onceTotal.Equal(bothTotal) {
		t.Fatalf("once total %v != both total %v; attribution mode must not change total cost", onceTotal, bothTotal)
	}
}

func TestApply_NoneModeOmitsSpreadButKeepsCommission(t *testing.T) {
	cfg := baseConfig()
	cfg.ApplySpread = types.ApplySpreadNone
	breakdown := NewModel(cfg).Apply("E", decimal.NewFromInt(1), nil)

	if !breakdown.SpreadEntry.IsZero() || !breakdown.SpreadExit.IsZero() {
		t.Fatalf("spread legs should be zero in none mode, got entry=%v exit=%v", breakdown.SpreadEntry, breakdown.SpreadExit)
	}
	if !breakdown.Total.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("total = %v, want 5 (commission only)", breakdown.Total)
	}
}

func TestApply_PerInstrumentOverrideTakesPrecedenceOverDefault(t *testing.T) {
	cfg := baseConfig()
	cfg.Overrides = map[string]types.InstrumentCostOverride{
		"GOLD": {CommissionPerTrade: decimal.NewFromFloat(10)},
	}
	m := NewModel(cfg)

	goldBreakdown := m.Apply("GOLD", decimal.NewFromInt(1), nil)
	if !goldBreakdown.Commission.Equal(decimal.NewFromFloat(10)) {
		t.Fatalf("GOLD commission = %v, want overridden 10", goldBreakdown.Commission)
	}

	otherBreakdown := m.Apply("SILVER", decimal.NewFromInt(1), nil)
	if !otherBreakdown.Commission.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("SILVER commission = %v, want default 5", otherBreakdown.Commission)
	}
}

func TestApply_RowOverrideTakesPrecedenceOverInstrumentOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.Overrides = map[string]types.InstrumentCostOverride{
		"GOLD": {CommissionPerTrade: decimal.NewFromFloat(10)},
	}
	m := NewModel(cfg)

	row := &types.InstrumentCostOverride{CommissionPerTrade: decimal.NewFromFloat(1)}
	breakdown := m.Apply("GOLD", decimal.NewFromInt(1), row)
	if !breakdown.Commission.Equal(decimal.NewFromFloat(1)) {
		t.Fatalf("commission = %v, want row-level override 1 (row > override > default)", breakdown.Commission)
	}
}
