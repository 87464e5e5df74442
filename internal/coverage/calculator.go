package coverage

import (
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/rating"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Glass breakage horsepower thresholds.
const (
	glassLowMaxHP = 10
	glassMidMaxHP = 14
)

// Calculator prices individual coverages against a tariff.
type Calculator struct {
	doc      *tariff.Document
	rates    tariff.CoverageRates
	resolver *rating.Resolver
	logger   *zap.Logger
}

// NewCalculator returns a calculator over doc. A nil logger disables logging.
func NewCalculator(doc *tariff.Document, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		doc:      doc,
		rates:    doc.CoverageRates(),
		resolver: rating.NewResolver(doc, logger),
		logger:   logger,
	}
}

// BaseRate returns the vehicle's civil-liability base rate before the
// commercial effort is applied.
func (c *Calculator) BaseRate(v Vehicle) (decimal.Decimal, error) {
	return c.resolver.Resolve(rating.Query{
		Category:   v.Category,
		HorsePower: v.HorsePower,
		SubType:    v.SubType,
		FuelType:   v.FuelType,
	})
}

// PremiumFor returns the annual premium of one coverage. sel is consulted
// by the coverages whose amount depends on the other selected coverages or
// on a chosen option.
func (c *Calculator) PremiumFor(id string, v Vehicle, sel Selection) (decimal.Decimal, error) {
	if err := validateVehicle(v); err != nil {
		return decimal.Zero, err
	}

	var (
		premium decimal.Decimal
		err     error
	)
	switch Normalize(id) {
	case CivilLiability:
		premium, err = c.civilLiability(v)
	case Damage:
		premium, err = percentOfValue(c.rates.Damage, v.Category, v.OriginalValue, Damage)
	case Collision:
		premium, err = percentOfValue(c.rates.Collision, v.Category, v.OriginalValue, Collision)
	case CappedDamage:
		premium, err = c.cappedDamage(v)
	case Theft:
		premium = mathutil.ApplyPercentage(v.MarketValue, c.rates.Theft)
	case Fire:
		premium = mathutil.ApplyPercentage(v.MarketValue, c.rates.Fire)
	case GlassBreakage:
		premium = c.glassBreakage(v.HorsePower)
	case AdvanceOnRecourse:
		premium = c.advanceOnRecourse()
	case Passengers:
		premium = c.passengers(sel.PassengerOption)
	case DefenseAndRecourse:
		premium, err = categoryAmount(c.rates.DefenseAndRecourse, v.Category, DefenseAndRecourse)
	case RoadsideAssistance:
		premium = c.roadside(v, sel)
	default:
		return decimal.Zero, apperr.Newf(apperr.KindUnsupportedCoverage, "unsupported coverage %q", id)
	}
	if err != nil {
		return decimal.Zero, err
	}

	c.logger.Debug("priced coverage",
		zap.String("op", "coverage.PremiumFor"),
		zap.String("coverage", id),
		zap.String("annual_premium", premium.String()))
	return premium, nil
}

// civilLiability applies the commercial effort to the base rate, rounding
// to two decimals and then to whole units.
func (c *Calculator) civilLiability(v Vehicle) (decimal.Decimal, error) {
	base, err := c.BaseRate(v)
	if err != nil {
		return decimal.Zero, err
	}
	return mathutil.Round(mathutil.RoundCents(mathutil.ApplyRate(base, c.doc.CommercialRate()))), nil
}

// cappedDamage is a percentage of the base rate with a minimum premium.
func (c *Calculator) cappedDamage(v Vehicle) (decimal.Decimal, error) {
	base, err := c.BaseRate(v)
	if err != nil {
		return decimal.Zero, err
	}
	premium := mathutil.ApplyPercentage(base, c.rates.CappedDamage.Rate)
	return mathutil.Max(premium, c.rates.CappedDamage.MinPremium), nil
}

func (c *Calculator) glassBreakage(hp int) decimal.Decimal {
	switch {
	case hp <= glassLowMaxHP:
		return c.rates.GlassBreakage.Low
	case hp <= glassMidMaxHP:
		return c.rates.GlassBreakage.Mid
	default:
		return c.rates.GlassBreakage.High
	}
}

// advanceOnRecourse insures the first configured capital.
func (c *Calculator) advanceOnRecourse() decimal.Decimal {
	a := c.rates.AdvanceOnRecourse
	if len(a.InsuredCapital) == 0 {
		return decimal.Zero
	}
	return mathutil.ApplyPercentage(a.InsuredCapital[0], a.Rate)
}

// passengers returns the amount of the chosen option. No option means the
// first one; an unknown option prices at zero.
func (c *Calculator) passengers(option int) decimal.Decimal {
	if option == 0 {
		option = 1
	}
	amount, ok := c.rates.Passengers[option]
	if !ok {
		return decimal.Zero
	}
	return amount
}

// roadside picks the tier from the vehicle weight, then from how many of
// the damage coverages are selected alongside it.
func (c *Calculator) roadside(v Vehicle, sel Selection) decimal.Decimal {
	tiers := c.rates.Roadside
	if v.MaxWeight > tiers.HeavyWeightKg {
		return tiers.Heavy
	}
	count := 0
	for _, id := range privileged {
		if sel.Has(id) {
			count++
		}
	}
	switch count {
	case 0:
		return tiers.Basic
	case 1:
		return tiers.Privilege
	default:
		return tiers.VIP
	}
}

func percentOfValue(table map[int]decimal.Decimal, category int, value decimal.Decimal, id string) (decimal.Decimal, error) {
	rate, err := categoryAmount(table, category, id)
	if err != nil {
		return decimal.Zero, err
	}
	return mathutil.ApplyPercentage(value, rate), nil
}

func categoryAmount(table map[int]decimal.Decimal, category int, id string) (decimal.Decimal, error) {
	amount, ok := table[category]
	if !ok {
		return decimal.Zero, apperr.Newf(apperr.KindRateNotFound, "no %s rate for category %d", id, category).
			WithContext("coverage", id).
			WithContext("category", category)
	}
	return amount, nil
}

func validateVehicle(v Vehicle) error {
	switch {
	case v.Category < tariff.MinCategory || v.Category > tariff.MaxCategory:
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "category must be between %d and %d, got %d",
			tariff.MinCategory, tariff.MaxCategory, v.Category)
	case v.HorsePower < 0:
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "horsepower must not be negative, got %d", v.HorsePower)
	case v.OriginalValue.IsNegative():
		return apperr.New(apperr.KindInvalidVehicleDetails, "original value must not be negative")
	case v.MarketValue.IsNegative():
		return apperr.New(apperr.KindInvalidVehicleDetails, "market value must not be negative")
	case v.MaxWeight < 0:
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "max weight must not be negative, got %d", v.MaxWeight)
	case v.SeatCount < 0:
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "seat count must not be negative, got %d", v.SeatCount)
	}
	return nil
}
