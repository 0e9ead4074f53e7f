package xbf

import (
	"errors"
	"fmt"

	"goXBF/internal/wire"
)

var (
	// ErrUnknownDiscriminant reports a metadata tag byte outside the
	// primitive, vector and record tag space.
	ErrUnknownDiscriminant = errors.New("unrecognized discriminant")

	// ErrMaxDepth reports metadata or values nested deeper than the
	// decoder allows.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")

	// ErrInvalidText reports a string that is not valid UTF-8.
	ErrInvalidText = wire.ErrInvalidText

	// ErrVectorLength reports a vector nested in a value with no element
	// count available to decode it.
	ErrVectorLength = errors.New("vector element count not supplied")

	// ErrNil reports a nil Metadata or Value where one is required.
	ErrNil = errors.New("nil metadata or value")

	// ErrTooManyFields reports record metadata whose field count does not
	// fit the 16-bit count on the wire.
	ErrTooManyFields = errors.New("record has more than 65535 fields")
)

// FormatError is returned when an input stream is structurally invalid,
// as opposed to truncated. Err is one of the sentinel errors above.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	return "xbf: " + e.Msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(sentinel error, format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

// MismatchError is returned by the checked constructors when a supplied
// value's shape differs from the declared one.
//
// For records Field names the offending field; for vectors Field is empty
// and Index is the element position. Expected is nil when a value was
// supplied beyond the declared fields, and Actual is nil when no value was
// supplied for a declared field.
type MismatchError struct {
	Field    string
	Index    int
	Expected Metadata
	Actual   Metadata
}

func (e *MismatchError) Error() string {
	where := fmt.Sprintf("field %q", e.Field)
	if e.Field == "" {
		where = fmt.Sprintf("element %d", e.Index)
	}
	switch {
	case e.Actual == nil && e.Expected != nil:
		return fmt.Sprintf("xbf: no value provided for %s, expected %s", where, e.Expected)
	case e.Expected == nil && e.Actual != nil:
		return fmt.Sprintf("xbf: unexpected value at position %d of type %s", e.Index, e.Actual)
	default:
		return fmt.Sprintf("xbf: provided value for %s is of type %s, expected %s", where, describe(e.Actual), describe(e.Expected))
	}
}

func describe(m Metadata) string {
	if m == nil {
		return "<nil>"
	}
	return m.String()
}
