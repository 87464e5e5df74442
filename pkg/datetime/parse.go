// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/premium-engine/pkg/constants"
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseContractDate parses a contract date in DateLayout. An empty value
// means the day containing now.
func ParseContractDate(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StartOfDay(now), nil
	}
	t, err := time.Parse(constants.DateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not in %s format", value, constants.DateLayout)
	}
	return t, nil
}
