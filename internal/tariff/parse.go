package tariff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/shopspring/decimal"
)

// Coverage ids understood by the tariff.
const (
	civilLiability     = "civil_liability"
	damage             = "damage"
	collision          = "collision"
	cappedDamage       = "capped_damage"
	theft              = "theft"
	fire               = "fire"
	glassBreakage      = "glass_breakage"
	advanceOnRecourse  = "advance_on_recourse"
	passengers         = "passengers"
	defenseAndRecourse = "defense_and_recourse"
	roadsideAssistance = "roadside_assistance"
)

var knownCoverages = map[string]bool{
	civilLiability: true, damage: true, collision: true, cappedDamage: true,
	theft: true, fire: true, glassBreakage: true, advanceOnRecourse: true,
	passengers: true, defenseAndRecourse: true, roadsideAssistance: true,
}

// Lowest and highest vehicle category.
const (
	MinCategory = 1
	MaxCategory = 5
)

type subtypePolicy struct {
	def      string
	required bool
}

// Sub-type defaults per category. Commercial vehicles (category 2) must
// always name their sub-type.
var subtypePolicies = map[int]subtypePolicy{
	2: {required: true},
	3: {def: "under3.5"},
	4: {def: "under9_seats"},
	5: {def: "scooters_under_125"},
}

// Amounts used when the optional coverage sections are absent.
var (
	defaultGlassTiers = GlassTiers{
		Low:  decimal.NewFromInt(12500),
		Mid:  decimal.NewFromInt(15000),
		High: decimal.NewFromInt(17500),
	}
	defaultPassengerOptions = map[int]decimal.Decimal{
		1: decimal.NewFromInt(4250),
		2: decimal.NewFromInt(6000),
		3: decimal.NewFromInt(8750),
		4: decimal.NewFromInt(30000),
	}
	defaultRoadside = RoadsideTiers{
		Heavy:         decimal.NewFromInt(75000),
		Basic:         decimal.NewFromInt(9000),
		Privilege:     decimal.NewFromInt(35500),
		VIP:           decimal.NewFromInt(67000),
		HeavyWeightKg: constants.HeavyVehicleWeightKg,
	}
)

// Parse validates a decoded tariff tree and builds a Document. Every
// violation found is reported in a single CONFIG_VALIDATION error.
func Parse(tree map[string]interface{}, origin string) (*Document, error) {
	if tree == nil {
		return nil, apperr.Validation(origin, []string{"document: empty"})
	}
	raw := normalize(tree).(map[string]interface{})
	p := &parser{}
	doc := &Document{origin: origin, raw: raw}

	doc.version = p.version(raw)
	p.fixedConstants(raw, doc)
	p.monthlyRates(raw, doc)
	doc.baseRates = p.baseRates(raw)
	doc.coverages = p.coverageFlags(raw)
	doc.rates = p.coverageRates(raw, doc.coverages)
	doc.packs = p.packs(raw, doc.coverages)

	if len(p.violations) > 0 {
		sort.Strings(p.violations)
		return nil, apperr.Validation(origin, p.violations)
	}
	return doc, nil
}

type parser struct {
	violations []string
}

func (p *parser) fail(path, format string, args ...interface{}) {
	p.violations = append(p.violations, path+": "+fmt.Sprintf(format, args...))
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func child(node map[string]interface{}, key string) (interface{}, bool) {
	v, ok := node[strings.ToLower(key)]
	return v, ok
}

// section returns a required object child.
func (p *parser) section(node map[string]interface{}, path, key string) map[string]interface{} {
	v, ok := child(node, key)
	if !ok {
		p.fail(join(path, key), "required")
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		p.fail(join(path, key), "must be an object, got %s", describe(v))
		return nil
	}
	return m
}

// optionalSection returns an object child, or nil when absent.
func (p *parser) optionalSection(node map[string]interface{}, path, key string) map[string]interface{} {
	v, ok := child(node, key)
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		p.fail(join(path, key), "must be an object, got %s", describe(v))
		return nil
	}
	return m
}

func (p *parser) number(node map[string]interface{}, path, key string) decimal.Decimal {
	if node == nil {
		return decimal.Zero
	}
	v, ok := child(node, key)
	if !ok {
		p.fail(join(path, key), "required")
		return decimal.Zero
	}
	return p.value(v, join(path, key))
}

func (p *parser) value(v interface{}, path string) decimal.Decimal {
	d, ok := toDecimal(v)
	if !ok {
		p.fail(path, "must be a number, got %s", describe(v))
		return decimal.Zero
	}
	if d.IsNegative() {
		p.fail(path, "must not be negative")
	}
	return d
}

func (p *parser) text(node map[string]interface{}, path, key string) string {
	if node == nil {
		return ""
	}
	v, ok := child(node, key)
	if !ok {
		p.fail(join(path, key), "required")
		return ""
	}
	s, ok := v.(string)
	if !ok || s == "" {
		p.fail(join(path, key), "must be a non-empty string")
	}
	return s
}

func (p *parser) version(raw map[string]interface{}) string {
	v, ok := child(raw, "version")
	if !ok || v == nil {
		return DefaultVersion
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return DefaultVersion
		}
		return t
	case bool, map[string]interface{}, []interface{}:
		p.fail("version", "must be a string, got %s", describe(v))
		return DefaultVersion
	default:
		return fmt.Sprint(t)
	}
}

func (p *parser) fixedConstants(raw map[string]interface{}, doc *Document) {
	c := p.section(raw, "", "constants")
	if c == nil {
		return
	}

	per := p.section(c, "constants", "periodicity")
	doc.periodicity = Periodicity{
		Day:   p.text(per, "constants.periodicity", "day"),
		Month: p.text(per, "constants.periodicity", "month"),
	}

	rates := p.section(c, "constants", "rates")
	doc.taxRate = p.number(rates, "constants.rates", "taxes")
	doc.fgaRate = p.number(rates, "constants.rates", "fga")
	doc.commercialRate = p.number(rates, "constants.rates", "commercial")
	for _, r := range []struct {
		name string
		val  decimal.Decimal
	}{{"taxes", doc.taxRate}, {"fga", doc.fgaRate}, {"commercial", doc.commercialRate}} {
		if r.val.GreaterThan(decimal.NewFromInt(1)) {
			p.fail("constants.rates."+r.name, "must be a fraction not above 1, got %s", r.val)
		}
	}

	amounts := p.section(c, "constants", "amounts")
	doc.accessories = p.number(amounts, "constants.amounts", "accessories")
	doc.brownCard = p.number(amounts, "constants.amounts", "brownCard")
}

func (p *parser) monthlyRates(raw map[string]interface{}, doc *Document) {
	m := p.section(raw, "", "monthlyRates")
	if m == nil {
		return
	}
	for key := range m {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > constants.MonthsPerYear {
			p.fail(join("monthlyRates", key), "month must be between 1 and %d", constants.MonthsPerYear)
		}
	}
	hundred := decimal.NewFromInt(constants.FullYearPercentage)
	for month := 1; month <= constants.MonthsPerYear; month++ {
		path := join("monthlyRates", strconv.Itoa(month))
		v, ok := m[strconv.Itoa(month)]
		if !ok {
			p.fail(path, "required")
			continue
		}
		rate := p.value(v, path)
		if rate.GreaterThan(hundred) {
			p.fail(path, "must not exceed %s", hundred)
		}
		if month > 1 && rate.LessThan(doc.monthly[month-2]) {
			p.fail(path, "must not be lower than the previous month")
		}
		doc.monthly[month-1] = rate
	}
	if !doc.monthly[constants.MonthsPerYear-1].Equal(hundred) {
		p.fail(join("monthlyRates", strconv.Itoa(constants.MonthsPerYear)), "must be %s", hundred)
	}
}

func (p *parser) baseRates(raw map[string]interface{}) map[int]RateTable {
	m := p.section(raw, "", "baseRates")
	if m == nil {
		return nil
	}
	tables := make(map[int]RateTable, len(m))
	for key, v := range m {
		path := join("baseRates", key)
		category, err := strconv.Atoi(key)
		if err != nil || category < MinCategory || category > MaxCategory {
			p.fail(path, "category must be between %d and %d", MinCategory, MaxCategory)
			continue
		}
		if t := p.rateTable(category, v, path); t != nil {
			tables[category] = t
		}
	}
	for c := MinCategory; c <= MaxCategory; c++ {
		if _, ok := m[strconv.Itoa(c)]; !ok {
			p.fail(join("baseRates", strconv.Itoa(c)), "required")
		}
	}
	return tables
}

// rateTable picks the variant from the shape of the data: an array is a
// flat band table, an object of arrays is keyed by sub-type and an object
// of numbers is keyed by sub-class.
func (p *parser) rateTable(category int, v interface{}, path string) RateTable {
	policy, hasPolicy := subtypePolicies[category]
	switch t := v.(type) {
	case []interface{}:
		return FlatTable{Bands: p.bands(t, path)}
	case map[string]interface{}:
		if len(t) == 0 {
			p.fail(path, "must not be empty")
			return nil
		}
		arrays, numbers := 0, 0
		for _, val := range t {
			if _, ok := val.([]interface{}); ok {
				arrays++
			} else {
				numbers++
			}
		}
		if arrays > 0 && numbers > 0 {
			p.fail(path, "must hold either band arrays or amounts, not both")
			return nil
		}
		if !hasPolicy {
			policy.required = true
		}
		if policy.def != "" {
			if _, ok := t[policy.def]; !ok {
				p.fail(join(path, policy.def), "default sub-type is missing")
			}
		}
		if arrays > 0 {
			table := SubtypeTable{Subtypes: make(map[string][]RateBand, len(t)), Default: policy.def, Required: policy.required}
			for name, val := range t {
				table.Subtypes[name] = p.bands(val.([]interface{}), join(path, name))
			}
			return table
		}
		table := IndexedTable{Values: make(map[string]decimal.Decimal, len(t)), Default: policy.def}
		for name, val := range t {
			table.Values[name] = p.value(val, join(path, name))
		}
		return table
	default:
		p.fail(path, "must be a band array or an object, got %s", describe(v))
		return nil
	}
}

// bands validates a band array: non-empty, starting at 0, contiguous, and
// open-ended only on the last band.
func (p *parser) bands(items []interface{}, path string) []RateBand {
	if len(items) == 0 {
		p.fail(path, "must not be empty")
		return nil
	}
	out := make([]RateBand, 0, len(items))
	for i, item := range items {
		bpath := join(path, strconv.Itoa(i))
		m, ok := item.(map[string]interface{})
		if !ok {
			p.fail(bpath, "must be an object, got %s", describe(item))
			continue
		}
		var band RateBand
		minV, ok := child(m, "min")
		if !ok {
			p.fail(join(bpath, "min"), "required")
		} else if n, ok := toInt(minV); !ok || n < 0 {
			p.fail(join(bpath, "min"), "must be a non-negative integer")
		} else {
			band.Min = n
		}
		if maxV, ok := child(m, "max"); ok && maxV != nil {
			if n, ok := toInt(maxV); !ok || n < band.Min {
				p.fail(join(bpath, "max"), "must be an integer not below min")
			} else {
				band.Max = &n
			}
		}
		band.Value = p.number(m, bpath, "value")
		out = append(out, band)
	}
	if len(out) != len(items) {
		return out
	}

	if out[0].Min != 0 {
		p.fail(join(path, "0.min"), "first band must start at 0")
	}
	for i := 1; i < len(out); i++ {
		prev := out[i-1]
		if prev.Max == nil {
			p.fail(join(path, strconv.Itoa(i-1)+".max"), "only the last band may be unbounded")
			break
		}
		if out[i].Min != *prev.Max+1 {
			p.fail(join(path, strconv.Itoa(i)+".min"), "must be %d to follow the previous band", *prev.Max+1)
		}
	}
	if out[len(out)-1].Max != nil {
		p.fail(join(path, strconv.Itoa(len(out)-1)+".max"), "last band must be unbounded")
	}
	return out
}

func (p *parser) coverageFlags(raw map[string]interface{}) map[string]Flags {
	m := p.section(raw, "", "coverages")
	if m == nil {
		return nil
	}
	flags := make(map[string]Flags, len(m))
	for id, v := range m {
		path := join("coverages", id)
		if !knownCoverages[id] {
			p.fail(path, "unknown coverage")
			continue
		}
		var f Flags
		if v != nil {
			fm, ok := v.(map[string]interface{})
			if !ok {
				p.fail(path, "must be an object, got %s", describe(v))
				continue
			}
			f.Required = p.flag(fm, path, "isRequired")
			f.Mandatory = p.flag(fm, path, "isMandatory")
		}
		flags[id] = f
	}
	if f, ok := flags[civilLiability]; !ok {
		p.fail(join("coverages", civilLiability), "required")
	} else if !f.Required {
		p.fail(join("coverages", civilLiability+".isRequired"), "must be true")
	}
	return flags
}

func (p *parser) flag(node map[string]interface{}, path, key string) bool {
	v, ok := child(node, key)
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		p.fail(join(path, key), "must be a boolean, got %s", describe(v))
	}
	return b
}

// coverageRates parses the rate sections. A section is required only when
// the tariff offers the coverage.
func (p *parser) coverageRates(raw map[string]interface{}, offered map[string]Flags) CoverageRates {
	rates := CoverageRates{
		GlassBreakage: defaultGlassTiers,
		Passengers:    defaultPassengerOptions,
		Roadside:      defaultRoadside,
	}
	m := p.section(raw, "", "coverageRates")
	if m == nil {
		return rates
	}
	const base = "coverageRates"
	section := func(id string) map[string]interface{} {
		if _, ok := offered[id]; ok {
			return p.section(m, base, id)
		}
		return p.optionalSection(m, base, id)
	}

	if s := section(damage); s != nil {
		rates.Damage = p.categoryAmounts(s, join(base, damage))
	}
	if s := section(collision); s != nil {
		rates.Collision = p.categoryAmounts(s, join(base, collision))
	}
	if s := section(cappedDamage); s != nil {
		path := join(base, cappedDamage)
		rates.CappedDamage = CappedRate{Rate: p.number(s, path, "rate"), MinPremium: p.number(s, path, "min_premium")}
	}
	if s := section(theft); s != nil {
		rates.Theft = p.number(s, join(base, theft), "rate")
	}
	if s := section(fire); s != nil {
		rates.Fire = p.number(s, join(base, fire), "rate")
	}
	if s := section(advanceOnRecourse); s != nil {
		path := join(base, advanceOnRecourse)
		rates.AdvanceOnRecourse = AdvanceRate{InsuredCapital: p.capitals(s, path), Rate: p.number(s, path, "rate")}
	}
	if s := section(defenseAndRecourse); s != nil {
		path := join(base, defenseAndRecourse)
		if amounts := p.section(s, path, "amount"); amounts != nil {
			rates.DefenseAndRecourse = p.categoryAmounts(amounts, join(path, "amount"))
		}
	}

	if s := p.optionalSection(m, base, glassBreakage); s != nil {
		rates.GlassBreakage = p.glassTiers(s, join(base, glassBreakage))
	}
	if s := p.optionalSection(m, base, passengers); s != nil {
		path := join(base, passengers)
		if opts := p.section(s, path, "options"); opts != nil {
			rates.Passengers = p.categoryAmounts(opts, join(path, "options"))
		}
	}
	if s := p.optionalSection(m, base, roadsideAssistance); s != nil {
		path := join(base, roadsideAssistance)
		rates.Roadside = RoadsideTiers{
			Heavy:         p.number(s, path, "heavy"),
			Basic:         p.number(s, path, "basic"),
			Privilege:     p.number(s, path, "privilege"),
			VIP:           p.number(s, path, "vip"),
			HeavyWeightKg: constants.HeavyVehicleWeightKg,
		}
		if v, ok := child(s, "heavy_weight_kg"); ok {
			if n, ok := toInt(v); ok && n > 0 {
				rates.Roadside.HeavyWeightKg = n
			} else {
				p.fail(join(path, "heavy_weight_kg"), "must be a positive integer")
			}
		}
	}
	return rates
}

// categoryAmounts parses an object keyed by small positive integers.
func (p *parser) categoryAmounts(m map[string]interface{}, path string) map[int]decimal.Decimal {
	if len(m) == 0 {
		p.fail(path, "must not be empty")
		return nil
	}
	out := make(map[int]decimal.Decimal, len(m))
	for key, v := range m {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 {
			p.fail(join(path, key), "key must be a positive integer")
			continue
		}
		out[n] = p.value(v, join(path, key))
	}
	return out
}

func (p *parser) capitals(m map[string]interface{}, path string) []decimal.Decimal {
	v, ok := child(m, "insured_capital")
	if !ok {
		p.fail(join(path, "insured_capital"), "required")
		return nil
	}
	items, ok := v.([]interface{})
	if !ok || len(items) == 0 {
		p.fail(join(path, "insured_capital"), "must be a non-empty array")
		return nil
	}
	out := make([]decimal.Decimal, len(items))
	for i, item := range items {
		out[i] = p.value(item, join(path, "insured_capital."+strconv.Itoa(i)))
	}
	return out
}

func (p *parser) glassTiers(m map[string]interface{}, path string) GlassTiers {
	v, ok := child(m, "tiers")
	items, isList := v.([]interface{})
	if !ok || !isList || len(items) != 3 {
		p.fail(join(path, "tiers"), "must be an array of 3 amounts")
		return defaultGlassTiers
	}
	return GlassTiers{
		Low:  p.value(items[0], join(path, "tiers.0")),
		Mid:  p.value(items[1], join(path, "tiers.1")),
		High: p.value(items[2], join(path, "tiers.2")),
	}
}

func (p *parser) packs(raw map[string]interface{}, offered map[string]Flags) map[string]Pack {
	m := p.optionalSection(raw, "", "packs")
	packs := make(map[string]Pack, len(m))
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		path := join("packs", code)
		pm, ok := m[code].(map[string]interface{})
		if !ok {
			p.fail(path, "must be an object, got %s", describe(m[code]))
			continue
		}
		pack := Pack{Code: code, Name: p.text(pm, path, "name")}
		if d, ok := child(pm, "description"); ok && d != nil {
			pack.Description = fmt.Sprint(d)
		}
		v, ok := child(pm, "coverages")
		items, isList := v.([]interface{})
		if !ok || !isList || len(items) == 0 {
			p.fail(join(path, "coverages"), "must be a non-empty array")
			continue
		}
		for i, item := range items {
			id, ok := item.(string)
			id = strings.ToLower(id)
			if _, offeredID := offered[id]; !ok || !offeredID {
				p.fail(join(path, "coverages."+strconv.Itoa(i)), "must name an offered coverage")
				continue
			}
			pack.Coverages = append(pack.Coverages, id)
		}
		packs[code] = pack
	}
	return packs
}
