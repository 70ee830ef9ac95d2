package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundToStepSize_FloorsToNearestStep(t *testing.T) {
	got := RoundToStepSize(decimal.NewFromFloat(1.27), decimal.NewFromFloat(0.1))
	want := decimal.NewFromFloat(1.2)
	if !got.Equal(want) {
		t.Fatalf("RoundToStepSize() = %s, want %s", got, want)
	}
}

func TestRoundToStepSize_ZeroStepIsNoOp(t *testing.T) {
	got := RoundToStepSize(decimal.NewFromFloat(1.27), decimal.Zero)
	if !got.Equal(decimal.NewFromFloat(1.27)) {
		t.Fatalf("RoundToStepSize() with zero step = %s, want unchanged", got)
	}
}

func TestClampDecimal_RestrictsToRange(t *testing.T) {
	min, max := decimal.NewFromInt(1), decimal.NewFromInt(10)
	cases := []struct {
		value decimal.Decimal
		want  decimal.Decimal
	}{
		{decimal.NewFromInt(0), min},
		{decimal.NewFromInt(5), decimal.NewFromInt(5)},
		{decimal.NewFromInt(20), max},
	}
	for _, c := range cases {
		if got := ClampDecimal(c.value, min, max); !got.Equal(c.want) {
			t.Fatalf("ClampDecimal(%s) = %s, want %s", c.value, got, c.want)
		}
	}
}

func TestCalculatePercentageChange_ZeroOldReturnsZero(t *testing.T) {
	got := CalculatePercentageChange(decimal.Zero, decimal.NewFromInt(100))
	if !got.Equal(decimal.Zero) {
		t.Fatalf("CalculatePercentageChange() with zero old = %s, want 0", got)
	}
}

func TestCalculatePercentageChange_ComputesRelativeChange(t *testing.T) {
	got := CalculatePercentageChange(decimal.NewFromInt(100), decimal.NewFromInt(110))
	want := decimal.NewFromInt(10)
	if !got.Equal(want) {
		t.Fatalf("CalculatePercentageChange() = %s, want %s", got, want)
	}
}

func TestFormatMoney_UsesCurrencySymbol(t *testing.T) {
	got := FormatMoney(decimal.NewFromFloat(1234.5), "EUR")
	want := "€1234.50"
	if got != want {
		t.Fatalf("FormatMoney() = %q, want %q", got, want)
	}
}
