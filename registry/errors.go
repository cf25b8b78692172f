package registry

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition marks a state-machine move that is not legal from
// the record's current status. The record is left unchanged.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNotFound marks an operation against an id the store does not hold.
var ErrNotFound = errors.New("not found")

// ValidationError reports a declined mutation. The prior state is kept.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func invalidTransition(op string, from any) error {
	return fmt.Errorf("%w: cannot %s a %s record", ErrInvalidTransition, op, from)
}
