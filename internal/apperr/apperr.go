// Package apperr provides the typed error kinds returned by the premium
// engine and its tariff loader.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the category of an engine error.
type Kind string

const (
	// KindConfigValidation indicates a malformed or incomplete tariff document.
	KindConfigValidation Kind = "CONFIG_VALIDATION"

	// KindConfigSource indicates the tariff source could not be read.
	KindConfigSource Kind = "CONFIG_SOURCE"

	// KindPathNotFound indicates a dotted tariff path that does not exist.
	KindPathNotFound Kind = "PATH_NOT_FOUND"

	// KindRateNotFound indicates no rate band or table entry matched.
	KindRateNotFound Kind = "RATE_NOT_FOUND"

	// KindUnsupportedCoverage indicates an unknown or unoffered coverage id.
	KindUnsupportedCoverage Kind = "UNSUPPORTED_COVERAGE"

	// KindIncompleteInput indicates a missing vehicle, contract or selection.
	KindIncompleteInput Kind = "INCOMPLETE_INPUT"

	// KindInvalidVehicleDetails indicates vehicle attributes that cannot be rated.
	KindInvalidVehicleDetails Kind = "INVALID_VEHICLE_DETAILS"

	// KindQuoteNotFound indicates an unknown or expired quote reference.
	KindQuoteNotFound Kind = "QUOTE_NOT_FOUND"
)

// Error is an engine error with its kind and optional context.
type Error struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Violations []string               `json:"violations,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, " (%d violations: %s)", len(e.Violations), strings.Join(e.Violations, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a context value to the error and returns it.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause into an error of the given kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation builds a config validation error carrying every violation found.
func Validation(source string, violations []string) *Error {
	v := make([]string, len(violations))
	copy(v, violations)
	return &Error{
		Kind:       KindConfigValidation,
		Message:    fmt.Sprintf("tariff document from %s is invalid", source),
		Violations: v,
	}
}

// KindOf returns the kind of err, or "" if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is an engine error of kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsClientError reports whether err was caused by caller input rather than
// by the tariff configuration.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindRateNotFound, KindUnsupportedCoverage, KindIncompleteInput, KindInvalidVehicleDetails, KindQuoteNotFound:
		return true
	}
	return false
}
