package etlerr

import (
	"errors"
	"fmt"
)

// Kind is the category of a pipeline failure.
type Kind string

const (
	// KindFetch is a network or transport failure while retrieving the source document.
	KindFetch Kind = "fetch"
	// KindParse means the source document does not have the expected structure.
	KindParse Kind = "parse"
	// KindReferenceData is a missing or malformed exchange rate file, or a missing currency.
	KindReferenceData Kind = "reference_data"
	// KindConversion is a magnitude that is not a number.
	KindConversion Kind = "conversion"
	// KindPersistence means a destination could not be written.
	KindPersistence Kind = "persistence"
	// KindQuery is a rejected, malformed, or schema-mismatched query.
	KindQuery Kind = "query"
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = "unknown"
)

// Error is a categorized pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode is set for fetch errors caused by a non-2xx response.
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func Fetch(cause error, format string, args ...any) *Error {
	return newError(KindFetch, cause, format, args...)
}

// FetchStatus reports a response that arrived but with a non-2xx status.
func FetchStatus(statusCode int, url string) *Error {
	err := newError(KindFetch, nil, "unexpected response from %s", url)
	err.StatusCode = statusCode
	return err
}

func Parse(cause error, format string, args ...any) *Error {
	return newError(KindParse, cause, format, args...)
}

func ReferenceData(cause error, format string, args ...any) *Error {
	return newError(KindReferenceData, cause, format, args...)
}

func Conversion(cause error, format string, args ...any) *Error {
	return newError(KindConversion, cause, format, args...)
}

func Persistence(cause error, format string, args ...any) *Error {
	return newError(KindPersistence, cause, format, args...)
}

func Query(cause error, format string, args ...any) *Error {
	return newError(KindQuery, cause, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
