// Package rating resolves the civil-liability base rate of a vehicle from
// the tariff's per-category rate tables.
package rating

import (
	"strings"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Query describes the vehicle attributes used to find a base rate.
type Query struct {
	Category   int
	HorsePower int
	SubType    string
	FuelType   string
}

// Tables supplies the per-category rate tables. *tariff.Document
// implements it.
type Tables interface {
	BaseRate(category int) (tariff.RateTable, error)
}

// Resolver looks up base rates in a tariff.
type Resolver struct {
	tables Tables
	logger *zap.Logger
}

// NewResolver returns a resolver over tables. A nil logger disables logging.
func NewResolver(tables Tables, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{tables: tables, logger: logger}
}

// ResolveRCRate returns the base rate for a gasoline-equivalent horsepower.
func (r *Resolver) ResolveRCRate(category, horsePower int, subType string) (decimal.Decimal, error) {
	return r.Resolve(Query{Category: category, HorsePower: horsePower, SubType: subType})
}

// Resolve returns the civil-liability base rate for q. Diesel horsepower is
// converted to its gasoline equivalent first.
func (r *Resolver) Resolve(q Query) (decimal.Decimal, error) {
	if err := validate(q); err != nil {
		return decimal.Zero, err
	}

	hp := q.HorsePower
	if strings.EqualFold(strings.TrimSpace(q.FuelType), constants.FuelDiesel) {
		converted, err := ConvertDieselPower(hp)
		if err != nil {
			return decimal.Zero, err
		}
		r.logger.Debug("converted diesel horsepower",
			zap.String("op", "rating.Resolve"),
			zap.Int("diesel_hp", hp),
			zap.Int("gasoline_hp", converted))
		hp = converted
	}

	table, err := r.tables.BaseRate(q.Category)
	if err != nil {
		return decimal.Zero, err
	}

	var bands []tariff.RateBand
	switch t := table.(type) {
	case tariff.FlatTable:
		bands = t.Bands
	case tariff.SubtypeTable:
		name, err := pickSubtype(q, t.Default, t.Required, t.Names())
		if err != nil {
			return decimal.Zero, err
		}
		bands = t.Subtypes[name]
	case tariff.IndexedTable:
		name, err := pickSubtype(q, t.Default, false, t.Names())
		if err != nil {
			return decimal.Zero, err
		}
		return t.Values[name], nil
	default:
		return decimal.Zero, apperr.Newf(apperr.KindRateNotFound, "category %d has an unsupported rate table %T", q.Category, table)
	}

	band, ok := findBand(bands, hp)
	if !ok {
		return decimal.Zero, apperr.Newf(apperr.KindRateNotFound, "no rate band for category %d and %d hp", q.Category, hp).
			WithContext("category", q.Category).
			WithContext("horse_power", hp)
	}
	return band.Value, nil
}

func validate(q Query) error {
	if q.HorsePower < 0 {
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "horsepower must not be negative, got %d", q.HorsePower)
	}
	if q.Category < tariff.MinCategory || q.Category > tariff.MaxCategory {
		return apperr.Newf(apperr.KindInvalidVehicleDetails, "category must be between %d and %d, got %d",
			tariff.MinCategory, tariff.MaxCategory, q.Category)
	}
	return nil
}

// pickSubtype returns the sub-type to use, falling back to def when the
// query names none and the table allows it.
func pickSubtype(q Query, def string, required bool, allowed []string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(q.SubType))
	if name == "" {
		if required || def == "" {
			return "", apperr.Newf(apperr.KindInvalidVehicleDetails,
				"category %d requires a sub-type, one of: %s", q.Category, strings.Join(allowed, ", "))
		}
		return def, nil
	}
	for _, a := range allowed {
		if a == name {
			return name, nil
		}
	}
	return "", apperr.Newf(apperr.KindInvalidVehicleDetails,
		"unknown sub-type %q for category %d, expected one of: %s", q.SubType, q.Category, strings.Join(allowed, ", "))
}

// findBand returns the first band containing hp.
func findBand(bands []tariff.RateBand, hp int) (tariff.RateBand, bool) {
	for _, b := range bands {
		if b.Contains(hp) {
			return b, true
		}
	}
	return tariff.RateBand{}, false
}
