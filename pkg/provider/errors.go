package provider

import (
	"errors"
)

var (
	// ErrSourceUnavailable is returned when a platform facility cannot be reached.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParse is returned when a facility responded with malformed fields.
	ErrParse = errors.New("parse error")

	// ErrImplausibleValue is returned when a parsed value is outside accepted bounds.
	ErrImplausibleValue = errors.New("implausible value")
)

// Kind classifies err into one of the error kinds above. It returns an
// empty string for errors of any other kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrImplausibleValue):
		return "ImplausibleValue"
	default:
		return ""
	}
}
