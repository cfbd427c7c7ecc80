package filter

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidValue = errors.New("invalid filter value")
)

// ValidationError reports malformed metadata or a malformed time range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidValueError reports a selection outside a dimension's domain.
type InvalidValueError struct {
	Dimension Dimension
	Value     string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid filter value %q for %s", e.Value, e.Dimension)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }
