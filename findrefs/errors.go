package findrefs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrContractViolation is wrapped by errors reporting an internal
// inconsistency, such as a finder producing a location outside its
// document.
var ErrContractViolation = errors.New("findrefs: contract violation")

// CanceledError is returned when a search is canceled. No partial result
// accompanies it.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string { return "findrefs: search canceled: " + e.Err.Error() }

func (e *CanceledError) Unwrap() error { return e.Err }

// IsCanceled reports whether err is the result of a canceled search.
func IsCanceled(err error) bool {
	var ce *CanceledError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// contractViolation panics in debug builds and otherwise returns an error
// wrapping ErrContractViolation.
func contractViolation(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if debug {
		panic("findrefs: contract violation: " + msg)
	}
	return errors.Wrap(ErrContractViolation, msg)
}
