// Package coverage computes the annual premium of each motor-insurance
// coverage.
package coverage

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Coverage ids.
const (
	CivilLiability     = "civil_liability"
	Damage             = "damage"
	Collision          = "collision"
	CappedDamage       = "capped_damage"
	Theft              = "theft"
	Fire               = "fire"
	GlassBreakage      = "glass_breakage"
	AdvanceOnRecourse  = "advance_on_recourse"
	Passengers         = "passengers"
	DefenseAndRecourse = "defense_and_recourse"
	RoadsideAssistance = "roadside_assistance"
)

// Order is the canonical order in which coverages are priced and reported.
var Order = []string{
	CivilLiability,
	Damage,
	Collision,
	CappedDamage,
	Theft,
	Fire,
	GlassBreakage,
	AdvanceOnRecourse,
	Passengers,
	DefenseAndRecourse,
	RoadsideAssistance,
}

var rank = func() map[string]int {
	m := make(map[string]int, len(Order))
	for i, id := range Order {
		m[id] = i
	}
	return m
}()

// privileged coverages raise the roadside assistance tier.
var privileged = []string{Damage, CappedDamage, Collision}

// Known reports whether id names a coverage the calculator can price.
func Known(id string) bool {
	_, ok := rank[id]
	return ok
}

// Normalize lowercases and trims a coverage id.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Sort returns the distinct ids in canonical order. Unknown ids are kept
// after the known ones, alphabetically.
func Sort(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = Normalize(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Vehicle holds the vehicle attributes used for pricing.
type Vehicle struct {
	Category      int
	SubType       string
	HorsePower    int
	FuelType      string
	SeatCount     int
	OriginalValue decimal.Decimal
	MarketValue   decimal.Decimal
	MaxWeight     int // kg
}

// Selection is the set of coverages chosen for a quote.
type Selection struct {
	Coverages []string
	// PassengerOption picks the passenger coverage amount, 1 to 4.
	// 0 selects option 1.
	PassengerOption int
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	id = Normalize(id)
	for _, c := range s.Coverages {
		if Normalize(c) == id {
			return true
		}
	}
	return false
}
