package rating

import (
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/pkg/mathutil"
)

type powerBand struct {
	min, max int // max < 0 means unbounded
}

type dieselEquivalence struct {
	diesel   powerBand
	gasoline powerBand
}

// Diesel fiscal horsepower bands and their gasoline equivalents.
var dieselEquivalences = []dieselEquivalence{
	{diesel: powerBand{0, 2}, gasoline: powerBand{0, 2}},
	{diesel: powerBand{3, 4}, gasoline: powerBand{3, 6}},
	{diesel: powerBand{5, 7}, gasoline: powerBand{7, 10}},
	{diesel: powerBand{8, 10}, gasoline: powerBand{11, 14}},
	{diesel: powerBand{11, 16}, gasoline: powerBand{15, 23}},
	{diesel: powerBand{17, -1}, gasoline: powerBand{24, -1}},
}

// ConvertDieselPower returns the gasoline-equivalent horsepower of a diesel
// engine: the midpoint of the matching gasoline band rounded half up, or the
// lower boundary of the open top band.
func ConvertDieselPower(hp int) (int, error) {
	for _, eq := range dieselEquivalences {
		if hp < eq.diesel.min || (eq.diesel.max >= 0 && hp > eq.diesel.max) {
			continue
		}
		if eq.gasoline.max < 0 {
			return eq.gasoline.min, nil
		}
		return mathutil.RoundHalfUpInt(eq.gasoline.min+eq.gasoline.max, 2), nil
	}
	return 0, apperr.Newf(apperr.KindRateNotFound, "no diesel equivalence for %d hp", hp)
}
