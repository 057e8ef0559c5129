// Package transport delivers rendered messages to an outbound email
// provider and classifies provider failures as permanent or transient.
//
// A permanent failure is one that retrying the same message cannot fix:
// the sender identity is not verified or does not match, or the
// credentials are invalid. Everything else, including throttling and
// provider outages, is transient.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Transport sends one message.
type Transport interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// PermanentError wraps a failure that will not succeed on retry.
type PermanentError struct {
	Code string
	Err  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent (%s): %v", e.Code, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError with the given code.
func Permanent(code string, err error) error {
	return &PermanentError{Code: code, Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
