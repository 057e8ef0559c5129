package dedup

import (
	"errors"
	"fmt"
)

// ErrAmbiguousEmail marks an email field that plainly meant to hold an
// address but yielded none. It aborts the whole import.
var ErrAmbiguousEmail = errors.New("email field has no extractable address")

// ValidationError is a fatal import error tied to one source row.
type ValidationError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
