// Package output provides utilities for formatting and displaying quotes.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/format"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(q *quote.Quote) {
	p := message.NewPrinter(language.English)
	res := q.Premium

	fmt.Printf("--- Quote %s ---\n", q.Reference)
	if q.PackName != "" {
		fmt.Printf("Pack: %s (%s)\n", q.PackName, q.PackCode)
	}
	_, _ = p.Printf("Vehicle: category %d, %d hp", q.Vehicle.Category, q.Vehicle.HorsePower)
	if q.Vehicle.SubType != "" {
		fmt.Printf(", %s", q.Vehicle.SubType)
	}
	fmt.Printf("\n")
	fmt.Printf("Period: %s to %s (%d months, %s)\n",
		q.Contract.EffectiveDate.Format(constants.DateLayout),
		q.ContractEnd.Format(constants.DateLayout),
		res.Months, format.Percentage(res.ProrationRate))
	fmt.Printf("\n")
	fmt.Printf("Coverage                 | Annual        | Prorated\n")
	fmt.Printf("________                 | ______        | ________\n")
	for _, c := range res.Coverages {
		_, _ = p.Printf("%-24s | %13d | %d\n", c.Coverage,
			mathutil.Round(c.AnnualPremium).IntPart(), mathutil.Round(c.ProratedPremium).IntPart())
	}
	fmt.Printf("\n")
	for _, line := range summaryLines(q) {
		fmt.Printf("%-24s   %s\n", line.label, format.Currency(line.amount))
	}
	fmt.Printf("\nTariff %s, valid until %s\n", res.TariffVersion, q.ValidUntil.Format(constants.DateLayout))
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(q *quote.Quote) {
	fmt.Print(CsvString(q))
}

// CsvString renders the quote lines as CSV: one row per coverage followed
// by the summary rows.
func CsvString(q *quote.Quote) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"reference", "item", "annual", "prorated"})
	for _, c := range q.Premium.Coverages {
		_ = w.Write([]string{q.Reference, c.Coverage,
			mathutil.RoundCents(c.AnnualPremium).String(), c.ProratedPremium.String()})
	}
	for _, line := range summaryLines(q) {
		_ = w.Write([]string{q.Reference, line.label, "", line.amount.String()})
	}
	w.Flush()
	return b.String()
}

// JSONFormat outputs the quote as indented JSON.
func JSONFormat(q *quote.Quote) error {
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// Print outputs q in the named format.
func Print(q *quote.Quote, outputFormat string) error {
	switch strings.ToLower(outputFormat) {
	case "", constants.OutputFormatPretty:
		PrettyFormat(q)
	case constants.OutputFormatCSV:
		CsvFormat(q)
	case constants.OutputFormatJSON:
		return JSONFormat(q)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

type summaryLine struct {
	label  string
	amount decimal.Decimal
}

func summaryLines(q *quote.Quote) []summaryLine {
	res := q.Premium
	return []summaryLine{
		{"base_premium", res.BasePremium},
		{"accessories", res.AccessoryAmount},
		{"taxes", res.Taxes},
		{"fga", res.FGA},
		{"brown_card", res.BrownCard},
		{"total", res.Total},
	}
}
