package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvariantViolation marks a value that should have been rejected by the
// line parser reaching numeric conversion.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError describes the offending value.
type InvariantError struct {
	Field Field
	Row   int
	Value string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: column %s row %d: %q is neither digits nor \"-\"", ErrInvariantViolation, e.Field, e.Row, e.Value)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}
