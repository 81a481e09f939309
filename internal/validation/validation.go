// Package validation reports malformed registrations, requests and budgets.
package validation

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every *Error via errors.Is.
var ErrInvalid = errors.New("validation failed")

// Error describes a single out-of-range or missing field.
type Error struct {
	Field  string
	Value  any
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Required fails when s is empty.
func Required(field, s string) error {
	if s == "" {
		return &Error{Field: field, Value: s, Reason: "required"}
	}
	return nil
}

// IntRange fails when v lies outside [lo, hi].
func IntRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &Error{Field: field, Value: v, Reason: fmt.Sprintf("must be in [%d, %d]", lo, hi)}
	}
	return nil
}

// FloatRange fails when v lies outside [lo, hi].
func FloatRange(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return &Error{Field: field, Value: v, Reason: fmt.Sprintf("must be in [%g, %g]", lo, hi)}
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
