// Package utils provides small decimal-arithmetic helpers shared across
// the engine's domain packages: rounding to instrument constraints,
// clamping, and percentage-change reporting.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundToTickSize rounds a price down to the nearest tick size.
func RoundToTickSize(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	return price.Div(tickSize).Floor().Mul(tickSize)
}

// RoundToStepSize rounds a quantity down to the nearest step size.
func RoundToStepSize(qty, stepSize decimal.Decimal) decimal.Decimal {
	if stepSize.IsZero() {
		return qty
	}
	return qty.Div(stepSize).Floor().Mul(stepSize)
}

// CalculatePercentageChange returns (new-old)/old * 100, or zero if old is zero.
func CalculatePercentageChange(old, new decimal.Decimal) decimal.Decimal {
	if old.IsZero() {
		return decimal.Zero
	}
	return new.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
}

// MinDecimal returns the lesser of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the greater of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal restricts value to [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// FormatMoney formats a decimal as a fiat money string for log/CLI output.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD":
		return "$" + d.StringFixed(2)
	case "GBP":
		return "£" + d.StringFixed(2)
	case "EUR":
		return "€" + d.StringFixed(2)
	default:
		return d.StringFixed(2) + " " + currency
	}
}
