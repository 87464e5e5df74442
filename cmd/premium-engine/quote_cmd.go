package main

import (
	"fmt"
	"time"

	"github.com/iwvelando/premium-engine/internal/coverage"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/datetime"
	"github.com/iwvelando/premium-engine/pkg/output"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type quoteFlags struct {
	category        int
	subType         string
	horsePower      int
	fuelType        string
	seatCount       int
	originalValue   string
	marketValue     string
	maxWeight       int
	duration        int
	periodicity     string
	effectiveDate   string
	coverages       []string
	passengerOption int
	packCode        string
}

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	f := &quoteFlags{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a vehicle and print the quote",
		Long: `Price the selected coverages for one vehicle and contract.

Civil liability is always included. Select more coverages with --coverage
or a whole pack with --pack.

Examples:
  premium-engine quote --category 1 --horse-power 10
  premium-engine quote --category 1 --horse-power 8 --fuel diesel --coverage theft,fire --market-value 3000000
  premium-engine quote --category 3 --horse-power 12 --duration 90 --periodicity day --output-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			req, err := f.request(time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			doc, err := a.loadTariff(ctx)
			if err != nil {
				return err
			}
			svc, cleanup, err := a.quoteService(ctx, doc)
			if err != nil {
				return err
			}
			defer cleanup()

			q, err := svc.Quote(ctx, req)
			if err != nil {
				a.logger.Error("failed to compute quote",
					zap.String("op", "main.quote"),
					zap.Error(err))
				return err
			}
			return output.Print(q, a.conf.Output.Format)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.category, "category", 0, "vehicle category (1 to 5)")
	fl.StringVar(&f.subType, "sub-type", "", "vehicle sub-type, e.g. under3.5 for category 2")
	fl.IntVar(&f.horsePower, "horse-power", 0, "fiscal horsepower")
	fl.StringVar(&f.fuelType, "fuel", "", "fuel type; diesel horsepower is converted")
	fl.IntVar(&f.seatCount, "seats", 0, "seat count")
	fl.StringVar(&f.originalValue, "original-value", "0", "value of the vehicle when new")
	fl.StringVar(&f.marketValue, "market-value", "0", "current market value of the vehicle")
	fl.IntVar(&f.maxWeight, "max-weight", 0, "maximum authorized weight in kg")
	fl.IntVar(&f.duration, "duration", constants.DefaultDurationMonths, "contract duration")
	fl.StringVar(&f.periodicity, "periodicity", constants.PeriodicityMonth, "unit of the duration: month, day or year")
	fl.StringVar(&f.effectiveDate, "effective-date", "", "contract start date (YYYY-MM-DD), defaults to today")
	fl.StringSliceVar(&f.coverages, "coverage", nil, "coverages to price in addition to the required ones")
	fl.IntVar(&f.passengerOption, "passenger-option", 0, "passenger coverage option (1 to 4)")
	fl.StringVar(&f.packCode, "pack", "", "insurance pack code")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("horse-power")
	return cmd
}

func (f *quoteFlags) request(now time.Time) (quote.Request, error) {
	originalValue, err := decimal.NewFromString(f.originalValue)
	if err != nil {
		return quote.Request{}, fmt.Errorf("invalid --original-value %q: %w", f.originalValue, err)
	}
	marketValue, err := decimal.NewFromString(f.marketValue)
	if err != nil {
		return quote.Request{}, fmt.Errorf("invalid --market-value %q: %w", f.marketValue, err)
	}

	effective, err := datetime.ParseContractDate(f.effectiveDate, now)
	if err != nil {
		return quote.Request{}, fmt.Errorf("invalid --effective-date: %w", err)
	}

	return quote.Request{
		Vehicle: coverage.Vehicle{
			Category:      f.category,
			SubType:       f.subType,
			HorsePower:    f.horsePower,
			FuelType:      f.fuelType,
			SeatCount:     f.seatCount,
			OriginalValue: originalValue,
			MarketValue:   marketValue,
			MaxWeight:     f.maxWeight,
		},
		Contract: premium.Contract{
			Duration:      f.duration,
			Periodicity:   f.periodicity,
			EffectiveDate: effective,
		},
		Coverages:       f.coverages,
		PassengerOption: f.passengerOption,
		PackCode:        f.packCode,
	}, nil
}
