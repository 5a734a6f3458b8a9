package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateSpecification checks the shape of a specification definition.
// Field eligibility depends on the record type schema and is checked by the
// engine. Returns a *ValidationError for malformed input, a
// *DuplicateAttributeError for a repeated attribute name and a
// *ConstraintViolationError for a field bound twice.
func ValidateSpecification(s *Specification) error {
	var ve ValidationError

	if strings.TrimSpace(s.AppliesToType) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "applies_to_type", Message: "is required"})
	}
	for i, a := range s.Attributes {
		if strings.TrimSpace(a.Name) == "" {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("attributes[%d].attribute_name", i),
				Message: "is required",
			})
		}
		if a.NumericValues && a.DateValues {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("attributes[%d]", i),
				Message: "numeric_values and date_values are mutually exclusive",
			})
		}
	}
	if ve.HasErrors() {
		return &ve
	}

	names := make(map[string]struct{}, len(s.Attributes))
	fields := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		if _, ok := names[a.Name]; ok {
			return &DuplicateAttributeError{Attribute: a.Name, Field: a.BoundField}
		}
		names[a.Name] = struct{}{}
		if a.BoundField == "" {
			continue
		}
		if other, ok := fields[a.BoundField]; ok {
			return Violation(a.Name, "field %q is already bound to attribute %q", a.BoundField, other)
		}
		fields[a.BoundField] = a.Name
	}
	return nil
}

// ValidateRecordType checks a record type schema for missing or repeated field names.
func ValidateRecordType(rt *RecordType) error {
	var ve ValidationError

	if strings.TrimSpace(rt.Name) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	}
	seen := make(map[string]struct{}, len(rt.Fields))
	for i, f := range rt.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			if f.Type.IsStructural() {
				continue
			}
			ve.Errors = append(ve.Errors, FieldError{Field: fmt.Sprintf("fields[%d].name", i), Message: "is required"})
			continue
		}
		if f.Type == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: fmt.Sprintf("fields[%d].type", i), Message: "is required"})
		}
		if _, ok := seen[name]; ok {
			ve.Errors = append(ve.Errors, FieldError{Field: fmt.Sprintf("fields[%d].name", i), Message: fmt.Sprintf("duplicate field %q", name)})
		}
		seen[name] = struct{}{}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
