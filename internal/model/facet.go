package model

// FacetKind selects how a facet summarizes and filters values.
type FacetKind string

const (
	FacetValues  FacetKind = "values"
	FacetNumeric FacetKind = "numeric"
	FacetDate    FacetKind = "date"
)

// KindOf returns the facet kind of an attribute definition.
func KindOf(a *Attribute) FacetKind {
	switch {
	case a.NumericValues:
		return FacetNumeric
	case a.DateValues:
		return FacetDate
	default:
		return FacetValues
	}
}

// Facet summarizes the effective values of one attribute across the records
// of a type. Values facets list the distinct values; numeric and date facets
// carry the range instead.
type Facet struct {
	Attribute string    `json:"attribute"`
	Field     string    `json:"field,omitempty"`
	Kind      FacetKind `json:"kind"`
	Values    []string  `json:"values,omitempty"`
	Min       string    `json:"min,omitempty"`
	Max       string    `json:"max,omitempty"`
}

// FacetFilter selects records by one attribute. A record matches when its
// value is one of Values or, for numeric and date attributes, lies within
// [Min, Max]. An open bound is unbounded.
type FacetFilter struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values,omitempty"`
	Min       string   `json:"min,omitempty"`
	Max       string   `json:"max,omitempty"`
}

// HasRange reports whether either bound is set.
func (f FacetFilter) HasRange() bool { return f.Min != "" || f.Max != "" }

// IsEmpty reports whether the filter selects nothing.
func (f FacetFilter) IsEmpty() bool { return len(f.Values) == 0 && !f.HasRange() }
