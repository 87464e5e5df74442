// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iwvelando/premium-engine/pkg/constants"
)

var referencePattern = regexp.MustCompile(fmt.Sprintf(`^%s\d{4}[0-9A-F]{%d}$`,
	constants.ReferencePrefix, constants.ReferenceLength-len(constants.ReferencePrefix)-4))

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON:
		return nil
	}
	return fmt.Errorf("expected output format of %s, %s or %s, got %s",
		constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON, format)
}

// ValidateReference checks that a quote reference is well formed. Lower case
// hex digits are accepted.
func ValidateReference(reference string) error {
	if !referencePattern.MatchString(strings.ToUpper(strings.TrimSpace(reference))) {
		return fmt.Errorf("malformed quote reference %q", reference)
	}
	return nil
}
