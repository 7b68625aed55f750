// Package failure classifies pipeline errors so callers can tell a broken
// download apart from bad data or a broken mapping table.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an error by the stage that produced it.
type Kind string

// Error kinds.
const (
	// KindTransport covers download and cache failures. Terminal for a run.
	KindTransport Kind = "transport"

	// KindDataQuality covers records that cannot be normalized.
	KindDataQuality Kind = "data_quality"

	// KindConfiguration covers malformed rule or mapping tables.
	KindConfiguration Kind = "configuration"
)

// Error is a classified error carrying enough context to find the
// offending record and field.
type Error struct {
	Err    error
	Op     string
	Kind   Kind
	Key    string
	Field  string
	Record int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s)", e.Op, e.Kind)

	if e.Record >= 0 && e.Kind == KindDataQuality {
		fmt.Fprintf(&b, " record %d", e.Record)

		if e.Key != "" {
			fmt.Fprintf(&b, " [%s]", e.Key)
		}
	}

	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by op when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}

	return t.Op == "" || t.Op == e.Op
}

// Sentinel targets for errors.Is.
var (
	ErrTransport     = &Error{Kind: KindTransport}
	ErrDataQuality   = &Error{Kind: KindDataQuality}
	ErrConfiguration = &Error{Kind: KindConfiguration}
)

// Transport wraps err as a transport failure.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Kind: KindTransport, Err: err, Record: -1}
}

// Configuration wraps err as a configuration failure.
func Configuration(op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Kind: KindConfiguration, Err: err, Record: -1}
}

// DataQuality wraps err as a data-quality failure tied to one record.
// Use record -1 when the failure is not tied to a single record.
func DataQuality(op string, record int, key, field string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Kind: KindDataQuality, Record: record, Key: key, Field: field, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or the empty kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return ""
}

// ExitCode maps an error to a process exit status: 0 for nil, 2 for
// configuration, 3 for transport, 4 for data quality and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindConfiguration:
		return 2
	case KindTransport:
		return 3
	case KindDataQuality:
		return 4
	default:
		return 1
	}
}
