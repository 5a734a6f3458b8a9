package model

import (
	"errors"
	"testing"
)

// validSpecification returns a Specification that passes all validation rules.
func validSpecification() Specification {
	return Specification{
		ID:            "Items",
		AppliesToType: "Item",
		Attributes: []*Attribute{
			{Name: "Color", BoundField: "color"},
			{Name: "Weight", BoundField: "weight_per_unit", NumericValues: true},
			{Name: "Grade"},
		},
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateSpecification_Valid(t *testing.T) {
	s := validSpecification()
	if err := ValidateSpecification(&s); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateSpecification_TypeRequired(t *testing.T) {
	s := validSpecification()
	s.AppliesToType = "  "
	errs := fieldErrors(t, ValidateSpecification(&s))
	if !hasFieldError(errs, "applies_to_type") {
		t.Error("expected error on 'applies_to_type'")
	}
}

func TestValidateSpecification_AttributeNameRequired(t *testing.T) {
	s := validSpecification()
	s.Attributes[1].Name = ""
	errs := fieldErrors(t, ValidateSpecification(&s))
	if !hasFieldError(errs, "attributes[1].attribute_name") {
		t.Errorf("expected error on attributes[1].attribute_name, got %v", errs)
	}
}

func TestValidateSpecification_NumericAndDate(t *testing.T) {
	s := validSpecification()
	s.Attributes[2].NumericValues = true
	s.Attributes[2].DateValues = true
	errs := fieldErrors(t, ValidateSpecification(&s))
	if !hasFieldError(errs, "attributes[2]") {
		t.Errorf("expected error on attributes[2], got %v", errs)
	}
}

func TestValidateSpecification_DuplicateName(t *testing.T) {
	s := validSpecification()
	s.Attributes = append(s.Attributes, &Attribute{Name: "Grade"})
	err := ValidateSpecification(&s)
	var dup *DuplicateAttributeError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *DuplicateAttributeError, got %v", err)
	}
	if dup.Attribute != "Grade" {
		t.Errorf("Attribute = %q, want %q", dup.Attribute, "Grade")
	}
}

func TestValidateSpecification_FieldBoundTwice(t *testing.T) {
	s := validSpecification()
	s.Attributes = append(s.Attributes, &Attribute{Name: "Colour", BoundField: "color"})
	err := ValidateSpecification(&s)
	var cv *ConstraintViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("expected *ConstraintViolationError, got %v", err)
	}
	if cv.Attribute != "Colour" {
		t.Errorf("Attribute = %q, want %q", cv.Attribute, "Colour")
	}
}

func TestValidateRecordType(t *testing.T) {
	for _, tc := range []struct {
		name      string
		rt        RecordType
		wantField string
	}{
		{
			name: "Valid",
			rt: RecordType{Name: "Item", Fields: []FieldDef{
				{Name: "color", Type: FieldTypeData},
				{Type: FieldTypeSectionBreak},
			}},
		},
		{
			name:      "MissingName",
			rt:        RecordType{Fields: []FieldDef{{Name: "color", Type: FieldTypeData}}},
			wantField: "name",
		},
		{
			name:      "MissingFieldType",
			rt:        RecordType{Name: "Item", Fields: []FieldDef{{Name: "color"}}},
			wantField: "fields[0].type",
		},
		{
			name: "DuplicateField",
			rt: RecordType{Name: "Item", Fields: []FieldDef{
				{Name: "color", Type: FieldTypeData},
				{Name: "color", Type: FieldTypeColor},
			}},
			wantField: "fields[1].name",
		},
		{
			name:      "UnnamedValueField",
			rt:        RecordType{Name: "Item", Fields: []FieldDef{{Type: FieldTypeData}}},
			wantField: "fields[0].name",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecordType(&tc.rt)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if !hasFieldError(fieldErrors(t, err), tc.wantField) {
				t.Errorf("expected error on %q, got %v", tc.wantField, err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "a", Message: "is required"},
		{Field: "b", Message: "is bad"},
	}}
	want := "validation failed: a: is required; b: is bad"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
