// Package format renders money amounts for display.
package format

import (
	"strings"

	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Currency returns an amount rounded to whole units with thousands
// separators and the currency code (e.g., "-1,234 XOF").
func Currency(amount decimal.Decimal) string {
	return NumericCurrency(amount) + " " + constants.Currency
}

// NumericCurrency returns an amount rounded to whole units with separators
// but no currency code (e.g., "-1,234").
func NumericCurrency(amount decimal.Decimal) string {
	rounded := mathutil.Round(amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + group(rounded.Abs().String())
}

// Percentage renders a percentage with at most two decimals (e.g., "52.5%").
func Percentage(p decimal.Decimal) string {
	return mathutil.RoundCents(p).String() + "%"
}

func group(intPart string) string {
	if len(intPart) <= 3 {
		return intPart
	}
	var builder strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			builder.WriteByte(',')
		}
		builder.WriteRune(digit)
	}
	return builder.String()
}
