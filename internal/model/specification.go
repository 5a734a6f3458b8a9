package model

import "time"

// Specification is a reusable attribute template projected onto records of
// AppliesToType. When AppliesToScope is set the specification is exclusive to
// that single record.
type Specification struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	AppliesToType  string       `json:"applies_to_type"`
	AppliesToScope string       `json:"applies_to_scope,omitempty"`
	Attributes     []*Attribute `json:"attributes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// DefaultTitle returns the display title derived from the target type and scope.
func (s *Specification) DefaultTitle() string {
	if s.AppliesToScope != "" {
		return s.AppliesToType + " - " + s.AppliesToScope
	}
	return s.AppliesToType
}

// IsTemplate reports whether the specification is a reusable template rather
// than scoped to a single record.
func (s *Specification) IsTemplate() bool {
	return s.AppliesToScope == ""
}

// AppliesTo reports whether the specification applies to the given record.
func (s *Specification) AppliesTo(refType, refID string) bool {
	if s.AppliesToType != refType {
		return false
	}
	return s.AppliesToScope == "" || s.AppliesToScope == refID
}

// Attribute looks up an attribute definition by name.
func (s *Specification) Attribute(name string) *Attribute {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Attribute is an ordered child row of a Specification.
type Attribute struct {
	SpecificationID string `json:"specification_id,omitempty"`
	Name            string `json:"attribute_name"`
	BoundField      string `json:"bound_field,omitempty"`
	NumericValues   bool   `json:"numeric_values,omitempty"`
	DateValues      bool   `json:"date_values,omitempty"`
	Position        int    `json:"position"`
}

// Value is a stored value (or override of a field-bound value) for one
// attribute of a specification on one reference record.
type Value struct {
	ID              string    `json:"id"`
	SpecificationID string    `json:"specification_id"`
	ReferenceType   string    `json:"reference_type"`
	ReferenceID     string    `json:"reference_id"`
	Attribute       string    `json:"attribute"`
	BoundField      string    `json:"bound_field,omitempty"`
	Value           string    `json:"value"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SpecificationFilter holds criteria for listing specifications.
type SpecificationFilter struct {
	AppliesToType  string `json:"applies_to_type,omitempty"`
	AppliesToScope string `json:"applies_to_scope,omitempty"`
}

// ValueFilter holds criteria for listing stored values. Empty fields match all.
type ValueFilter struct {
	SpecificationID string `json:"specification_id,omitempty"`
	ReferenceType   string `json:"reference_type,omitempty"`
	ReferenceID     string `json:"reference_id,omitempty"`
	// Attributes narrows the result to values of these attribute names.
	Attributes []string `json:"attributes,omitempty"`
}
