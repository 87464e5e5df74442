// Package premium prorates coverage premiums to the contract term and
// layers taxes, the FGA levy and fixed fees into the final premium.
//
// An Engine holds no mutable state: ComputePremium may be called from any
// number of goroutines.
package premium

import (
	"strings"
	"time"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/coverage"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Contract is the term being priced.
type Contract struct {
	Duration      int
	Periodicity   string
	EffectiveDate time.Time
}

// EndDate returns the last covered instant of the contract.
func (c Contract) EndDate(months int) time.Time {
	if c.EffectiveDate.IsZero() {
		return time.Time{}
	}
	if strings.EqualFold(c.Periodicity, constants.PeriodicityDay) {
		return c.EffectiveDate.AddDate(0, 0, c.Duration)
	}
	return c.EffectiveDate.AddDate(0, months, 0)
}

// Request groups the inputs of a premium computation.
type Request struct {
	Vehicle   *coverage.Vehicle
	Contract  *Contract
	Selection *coverage.Selection
}

// CoveragePremium is the premium of one coverage.
type CoveragePremium struct {
	Coverage        string
	AnnualPremium   decimal.Decimal
	ProratedPremium decimal.Decimal
}

// Result is a complete premium breakdown.
type Result struct {
	Coverages       []CoveragePremium
	Months          int
	ProrationRate   decimal.Decimal
	AnnualPremium   decimal.Decimal
	BasePremium     decimal.Decimal
	AccessoryAmount decimal.Decimal
	Taxes           decimal.Decimal
	FGA             decimal.Decimal
	BrownCard       decimal.Decimal
	Total           decimal.Decimal
	TariffVersion   string
}

// Coverage returns the premium of one coverage in the result.
func (r *Result) Coverage(id string) (CoveragePremium, bool) {
	for _, c := range r.Coverages {
		if c.Coverage == id {
			return c, true
		}
	}
	return CoveragePremium{}, false
}

// Engine computes premiums against one tariff.
type Engine struct {
	doc    *tariff.Document
	calc   *coverage.Calculator
	logger *zap.Logger
}

// NewEngine returns an engine over doc. A nil logger disables logging.
func NewEngine(doc *tariff.Document, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		doc:    doc,
		calc:   coverage.NewCalculator(doc, logger),
		logger: logger,
	}
}

// Document returns the tariff the engine prices against.
func (e *Engine) Document() *tariff.Document {
	return e.doc
}

// Months converts a contract duration to whole months. A zero duration
// means a full year and an empty periodicity means months. Day durations
// are counted in started 30 day months.
func (e *Engine) Months(c Contract) (int, error) {
	if c.Duration < 0 {
		return 0, apperr.Newf(apperr.KindIncompleteInput, "contract duration must not be negative, got %d", c.Duration)
	}
	if c.Duration == 0 {
		return constants.DefaultDurationMonths, nil
	}

	labels := e.doc.Periodicity()
	switch p := strings.TrimSpace(c.Periodicity); {
	case p == "", strings.EqualFold(p, labels.Month), strings.EqualFold(p, constants.PeriodicityMonth):
		return c.Duration, nil
	case strings.EqualFold(p, labels.Day), strings.EqualFold(p, constants.PeriodicityDay):
		return mathutil.CeilDiv(c.Duration, constants.DaysPerMonth), nil
	case strings.EqualFold(p, constants.PeriodicityYear):
		return c.Duration * constants.MonthsPerYear, nil
	default:
		return 0, apperr.Newf(apperr.KindIncompleteInput, "unsupported contract periodicity %q", c.Periodicity)
	}
}

// Coverages returns the coverages priced for sel: the required ones plus
// the selected ones, in canonical order. Every id must be known and
// offered by the tariff.
func (e *Engine) Coverages(sel coverage.Selection) ([]string, error) {
	ids := coverage.Sort(append(e.doc.RequiredCoverages(), sel.Coverages...))
	for _, id := range ids {
		if !coverage.Known(id) {
			return nil, apperr.Newf(apperr.KindUnsupportedCoverage, "unsupported coverage %q", id)
		}
		if _, ok := e.doc.Coverage(id); !ok {
			return nil, apperr.Newf(apperr.KindUnsupportedCoverage, "coverage %q is not offered by tariff %s", id, e.doc.Version())
		}
	}
	return ids, nil
}

// ComputePremium prices a request. Amounts are rounded to whole units at
// each stage: prorated premiums, then taxes and FGA.
func (e *Engine) ComputePremium(req Request) (*Result, error) {
	switch {
	case req.Vehicle == nil:
		return nil, apperr.New(apperr.KindIncompleteInput, "vehicle is required")
	case req.Contract == nil:
		return nil, apperr.New(apperr.KindIncompleteInput, "contract is required")
	case req.Selection == nil:
		return nil, apperr.New(apperr.KindIncompleteInput, "coverage selection is required")
	}

	months, err := e.Months(*req.Contract)
	if err != nil {
		return nil, err
	}
	rate, err := e.doc.MonthlyRate(months)
	if err != nil {
		return nil, err
	}
	ids, err := e.Coverages(*req.Selection)
	if err != nil {
		return nil, err
	}

	sel := coverage.Selection{Coverages: ids, PassengerOption: req.Selection.PassengerOption}
	result := &Result{
		Coverages:       make([]CoveragePremium, 0, len(ids)),
		Months:          months,
		ProrationRate:   rate,
		AccessoryAmount: e.doc.AccessoryAmount(),
		BrownCard:       e.doc.BrownCardAmount(),
		TariffVersion:   e.doc.Version(),
	}

	var civilLiability decimal.Decimal
	for _, id := range ids {
		annual, err := e.calc.PremiumFor(id, *req.Vehicle, sel)
		if err != nil {
			return nil, err
		}
		prorated := Prorate(annual, rate)
		result.Coverages = append(result.Coverages, CoveragePremium{
			Coverage:        id,
			AnnualPremium:   annual,
			ProratedPremium: prorated,
		})
		result.AnnualPremium = result.AnnualPremium.Add(annual)
		result.BasePremium = result.BasePremium.Add(prorated)
		if id == coverage.CivilLiability {
			civilLiability = prorated
		}
	}

	result.Taxes = mathutil.Round(mathutil.ApplyRate(result.BasePremium.Add(result.AccessoryAmount), e.doc.TaxRate()))
	result.FGA = mathutil.Round(mathutil.ApplyRate(civilLiability, e.doc.FGARate()))
	result.Total = mathutil.Sum(result.BasePremium, result.AccessoryAmount, result.Taxes, result.FGA, result.BrownCard)

	e.logger.Debug("computed premium",
		zap.String("op", "premium.ComputePremium"),
		zap.Int("category", req.Vehicle.Category),
		zap.Int("months", months),
		zap.Strings("coverages", ids),
		zap.String("total", result.Total.String()))
	return result, nil
}

// Prorate applies a proration percentage to an annual premium and rounds
// to whole units.
func Prorate(annual, percentage decimal.Decimal) decimal.Decimal {
	return mathutil.Round(mathutil.ApplyPercentage(annual, percentage))
}
