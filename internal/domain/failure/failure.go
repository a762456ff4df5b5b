// Package failure defines the error taxonomy shared by pricing, settlement and
// the adapters that surface them.
package failure

import (
	"errors"
	"fmt"
)

// Error kinds. Classify with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrNoEntries       = errors.New("no eligible entries")
	ErrDataUnavailable = errors.New("performance data unavailable")
	ErrConflict        = errors.New("conflict")
	ErrPartialWrite    = errors.New("settlement recorded, payouts pending")
	ErrInternal        = errors.New("internal error")
)

// Error attaches an operation and a kind to an underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New returns an *Error of the given kind with a formatted cause.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap returns an *Error of the given kind around err. A nil err stays nil.
func Wrap(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Validation is shorthand for New(op, ErrValidation, ...).
func Validation(op, format string, args ...any) error {
	return New(op, ErrValidation, format, args...)
}

// KindOf returns the first known kind err carries, or ErrInternal.
func KindOf(err error) error {
	for _, k := range []error{
		ErrPartialWrite, ErrValidation, ErrNotFound, ErrNoEntries,
		ErrDataUnavailable, ErrConflict,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// PartialWriteError reports that a result was persisted but a later step did not complete.
type PartialWriteError struct {
	ContestID string
	ResultID  string
	Step      string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("contest %s: result %s recorded, %s incomplete: %v", e.ContestID, e.ResultID, e.Step, e.Err)
}

// Unwrap exposes ErrPartialWrite and the cause.
func (e *PartialWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialWrite}
	}
	return []error{ErrPartialWrite, e.Err}
}
