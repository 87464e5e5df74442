// Package mathutil provides common currency arithmetic helpers.
package mathutil

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds a value to whole currency units, half away from zero.
// XOF has no fractional subunit.
func Round(val decimal.Decimal) decimal.Decimal {
	return val.Round(0)
}

// RoundCents rounds a value to two decimals.
func RoundCents(val decimal.Decimal) decimal.Decimal {
	return val.Round(2)
}

// ApplyPercentage applies a percentage to a value, e.g. 2.6 (%) of 1000 is 26.
func ApplyPercentage(value, percentage decimal.Decimal) decimal.Decimal {
	return value.Mul(percentage).Div(hundred)
}

// ApplyRate applies a fractional rate to a value, e.g. 0.14 of 1000 is 140.
func ApplyRate(value, rate decimal.Decimal) decimal.Decimal {
	return value.Mul(rate)
}

// Max returns the larger of two values.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// IsWhole reports whether the value has no fractional part.
func IsWhole(val decimal.Decimal) bool {
	return val.Equal(val.Truncate(0))
}

// RoundHalfUpInt rounds a/b to the nearest integer with halves going up,
// for non-negative operands.
func RoundHalfUpInt(a, b int) int {
	return (2*a + b) / (2 * b)
}

// CeilDiv divides a by b rounding up, for non-negative operands.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
