// Package tariff loads, validates and exposes the motor-insurance tariff
// document the premium engine prices against.
//
// A Document is built once from a Source and never modified afterwards, so
// it can be shared by any number of goroutines without locking.
package tariff

import (
	"sort"
	"strconv"
	"strings"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/shopspring/decimal"
)

// DefaultVersion is reported for documents that carry no version.
const DefaultVersion = "unversioned"

// RateBand maps an inclusive horsepower interval to a rate. A nil Max means
// the band is unbounded above.
type RateBand struct {
	Min   int             `json:"min" yaml:"min"`
	Max   *int            `json:"max" yaml:"max"`
	Value decimal.Decimal `json:"value" yaml:"value"`
}

// Contains reports whether hp falls inside the band.
func (b RateBand) Contains(hp int) bool {
	return hp >= b.Min && (b.Max == nil || hp <= *b.Max)
}

// RateTable is the civil-liability rate structure of one vehicle category:
// a FlatTable, a SubtypeTable or an IndexedTable.
type RateTable interface {
	rateTable()
}

// FlatTable is a single band array.
type FlatTable struct {
	Bands []RateBand
}

// SubtypeTable holds one band array per vehicle sub-type (weight class,
// seat class or commercial use). When Required is set a sub-type must be
// given; otherwise Default is used.
type SubtypeTable struct {
	Subtypes map[string][]RateBand
	Default  string
	Required bool
}

// IndexedTable maps a vehicle sub-class directly to a rate, falling back to
// Default.
type IndexedTable struct {
	Values  map[string]decimal.Decimal
	Default string
}

func (FlatTable) rateTable()    {}
func (SubtypeTable) rateTable() {}
func (IndexedTable) rateTable() {}

// Names returns the sorted sub-type names.
func (t SubtypeTable) Names() []string {
	names := make([]string, 0, len(t.Subtypes))
	for name := range t.Subtypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns the sorted sub-class names.
func (t IndexedTable) Names() []string {
	names := make([]string, 0, len(t.Values))
	for name := range t.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Periodicity holds the labels used for contract durations.
type Periodicity struct {
	Day   string
	Month string
}

// Flags describes how a coverage is offered.
type Flags struct {
	// Required coverages are always priced, whatever the caller selects.
	Required bool
	// Mandatory is informative and does not change pricing.
	Mandatory bool
}

// Pack is a named bundle of coverages.
type Pack struct {
	Code        string
	Name        string
	Description string
	Coverages   []string
}

// CappedRate parameterizes the capped damage coverage.
type CappedRate struct {
	Rate       decimal.Decimal
	MinPremium decimal.Decimal
}

// AdvanceRate parameterizes the advance on recourse coverage.
type AdvanceRate struct {
	InsuredCapital []decimal.Decimal
	Rate           decimal.Decimal
}

// GlassTiers are the glass breakage amounts for horsepower up to 10,
// 11 to 14, and above 14.
type GlassTiers struct {
	Low  decimal.Decimal
	Mid  decimal.Decimal
	High decimal.Decimal
}

// RoadsideTiers are the roadside assistance amounts.
type RoadsideTiers struct {
	Heavy         decimal.Decimal
	Basic         decimal.Decimal
	Privilege     decimal.Decimal
	VIP           decimal.Decimal
	HeavyWeightKg int
}

// CoverageRates holds every per-coverage rate table. The maps are shared
// with the Document and must not be modified.
type CoverageRates struct {
	Damage             map[int]decimal.Decimal
	Collision          map[int]decimal.Decimal
	CappedDamage       CappedRate
	Theft              decimal.Decimal
	Fire               decimal.Decimal
	AdvanceOnRecourse  AdvanceRate
	DefenseAndRecourse map[int]decimal.Decimal
	GlassBreakage      GlassTiers
	Passengers         map[int]decimal.Decimal
	Roadside           RoadsideTiers
}

// Document is a validated tariff.
type Document struct {
	origin      string
	version     string
	raw         map[string]interface{}
	periodicity Periodicity
	monthly     [constants.MonthsPerYear]decimal.Decimal
	baseRates   map[int]RateTable
	rates       CoverageRates
	coverages   map[string]Flags
	packs       map[string]Pack

	taxRate        decimal.Decimal
	fgaRate        decimal.Decimal
	commercialRate decimal.Decimal
	accessories    decimal.Decimal
	brownCard      decimal.Decimal
}

// Version returns the document version.
func (d *Document) Version() string { return d.version }

// Origin describes the source the document was loaded from.
func (d *Document) Origin() string { return d.origin }

// Get returns the raw value at a dotted path such as
// "constants.rates.taxes" or "baseRates.2.under3.5". Keys are matched
// case-insensitively and may themselves contain dots.
func (d *Document) Get(path string) (interface{}, error) {
	v, ok := lookup(d.raw, path)
	if !ok {
		return nil, apperr.Newf(apperr.KindPathNotFound, "tariff path %q not found", path)
	}
	return deepCopy(v), nil
}

// Has reports whether a dotted path exists.
func (d *Document) Has(path string) bool {
	_, ok := lookup(d.raw, path)
	return ok
}

// Export returns a deep copy of the normalized document tree.
func (d *Document) Export() map[string]interface{} {
	return deepCopy(d.raw).(map[string]interface{})
}

// MonthlyRate returns the proration percentage for a duration in months.
// Durations above a year saturate at the twelve month rate.
func (d *Document) MonthlyRate(months int) (decimal.Decimal, error) {
	if months < 1 {
		return decimal.Zero, apperr.Newf(apperr.KindIncompleteInput, "duration must be at least one month, got %d", months)
	}
	if months > constants.MonthsPerYear {
		months = constants.MonthsPerYear
	}
	return d.monthly[months-1], nil
}

// BaseRate returns the civil-liability rate table of a category.
func (d *Document) BaseRate(category int) (RateTable, error) {
	t, ok := d.baseRates[category]
	if !ok {
		return nil, apperr.Newf(apperr.KindRateNotFound, "no base rates for category %d", category)
	}
	return t, nil
}

// Categories returns the configured categories in ascending order.
func (d *Document) Categories() []int {
	out := make([]int, 0, len(d.baseRates))
	for c := range d.baseRates {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// CoverageRates returns the per-coverage rate tables.
func (d *Document) CoverageRates() CoverageRates { return d.rates }

// CoverageTable returns the raw rate section of one coverage.
func (d *Document) CoverageTable(name string) (interface{}, error) {
	return d.Get("coverageRates." + name)
}

// Coverage returns the flags of a coverage and whether the tariff offers it.
func (d *Document) Coverage(id string) (Flags, bool) {
	f, ok := d.coverages[strings.ToLower(id)]
	return f, ok
}

// CoverageIDs returns the ids of every offered coverage, sorted.
func (d *Document) CoverageIDs() []string {
	ids := make([]string, 0, len(d.coverages))
	for id := range d.coverages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequiredCoverages returns the ids of coverages that are always priced, sorted.
func (d *Document) RequiredCoverages() []string {
	var ids []string
	for id, f := range d.coverages {
		if f.Required {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Pack returns an insurance pack by code.
func (d *Document) Pack(code string) (Pack, error) {
	p, ok := d.packs[strings.ToLower(code)]
	if !ok {
		return Pack{}, apperr.Newf(apperr.KindUnsupportedCoverage, "unknown insurance pack %q", code)
	}
	return p, nil
}

// Packs returns every pack, sorted by code.
func (d *Document) Packs() []Pack {
	out := make([]Pack, 0, len(d.packs))
	for _, p := range d.packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TaxRate returns the tax rate as a fraction.
func (d *Document) TaxRate() decimal.Decimal { return d.taxRate }

// FGARate returns the guarantee fund (FGA) levy rate as a fraction.
func (d *Document) FGARate() decimal.Decimal { return d.fgaRate }

// CommercialRate returns the commercial effort multiplier.
func (d *Document) CommercialRate() decimal.Decimal { return d.commercialRate }

// AccessoryAmount returns the fixed accessory fee.
func (d *Document) AccessoryAmount() decimal.Decimal { return d.accessories }

// BrownCardAmount returns the fixed brown card fee.
func (d *Document) BrownCardAmount() decimal.Decimal { return d.brownCard }

// Periodicity returns the duration labels.
func (d *Document) Periodicity() Periodicity { return d.periodicity }

// lookup walks a dotted path. At each level the longest run of segments
// naming an existing key wins, so keys containing dots resolve.
func lookup(root map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	segs := strings.Split(strings.ToLower(path), ".")
	var node interface{} = root
	for i := 0; i < len(segs); {
		switch n := node.(type) {
		case map[string]interface{}:
			matched := false
			for j := len(segs); j > i; j-- {
				if v, ok := n[strings.Join(segs[i:j], ".")]; ok {
					node, i, matched = v, j, true
					break
				}
			}
			if !matched {
				return nil, false
			}
		case []interface{}:
			idx, err := strconv.Atoi(segs[i])
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, false
			}
			node, i = n[idx], i+1
		default:
			return nil, false
		}
	}
	return node, true
}
