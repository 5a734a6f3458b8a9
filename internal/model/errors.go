package model

import (
	"errors"
	"fmt"
)

// UnknownTypeError is returned when a record type has no schema.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Type)
}

// DuplicateAttributeError is returned when a submitted row set repeats an
// attribute. Field is empty for free-form duplicates.
type DuplicateAttributeError struct {
	Attribute string
	Field     string
}

func (e *DuplicateAttributeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("duplicate attribute %q bound to field %q", e.Attribute, e.Field)
	}
	return fmt.Sprintf("duplicate attribute %q", e.Attribute)
}

// ConstraintViolationError is returned when a row or definition breaks a
// persistence constraint. The whole batch is rejected.
type ConstraintViolationError struct {
	Attribute string
	Reason    string
}

func (e *ConstraintViolationError) Error() string {
	if e.Attribute == "" {
		return "constraint violation: " + e.Reason
	}
	return fmt.Sprintf("constraint violation on attribute %q: %s", e.Attribute, e.Reason)
}

// Violation is shorthand for building a ConstraintViolationError.
func Violation(attribute, format string, args ...any) error {
	return &ConstraintViolationError{Attribute: attribute, Reason: fmt.Sprintf(format, args...)}
}

// IsUnknownType reports whether err wraps an UnknownTypeError.
func IsUnknownType(err error) bool {
	var target *UnknownTypeError
	return errors.As(err, &target)
}

// IsDuplicateAttribute reports whether err wraps a DuplicateAttributeError.
func IsDuplicateAttribute(err error) bool {
	var target *DuplicateAttributeError
	return errors.As(err, &target)
}

// IsConstraintViolation reports whether err wraps a ConstraintViolationError.
func IsConstraintViolation(err error) bool {
	var target *ConstraintViolationError
	return errors.As(err, &target)
}
