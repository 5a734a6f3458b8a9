package model

// Row is one {attribute, field, value} triple exchanged with the editing
// surface. Value is nil when the row is unresolved (definition mode).
type Row struct {
	Specification string  `json:"specification,omitempty"`
	Attribute     string  `json:"attribute"`
	Field         string  `json:"field,omitempty"`
	Value         *string `json:"value"`
}

// Text returns the row value, treating an unresolved value as empty.
func (r Row) Text() string {
	if r.Value == nil {
		return ""
	}
	return *r.Value
}

// NewRow builds a resolved row.
func NewRow(attribute, field, value string) Row {
	return Row{Attribute: attribute, Field: field, Value: &value}
}

// ResolveMode identifies how a Resolution was produced.
type ResolveMode string

const (
	ModeDefinition ResolveMode = "definition"
	ModeRecord     ResolveMode = "record"
)

// Shadowed records an attribute definition hidden by a more recently modified
// specification that defines the same attribute name.
type Shadowed struct {
	Attribute     string `json:"attribute"`
	Specification string `json:"specification"`
	Field         string `json:"field,omitempty"`
	ShadowedBy    string `json:"shadowed_by"`
}

// Resolution is the effective value set for a (specification, record) pair.
type Resolution struct {
	Mode     ResolveMode `json:"mode"`
	Rows     []Row       `json:"rows"`
	Shadowed []Shadowed  `json:"shadowed,omitempty"`
}

// ApplyResult reports the outcome of a value upsert. References lists the
// records written to by a generate call.
type ApplyResult struct {
	Written    int      `json:"written"`
	References []string `json:"references,omitempty"`
}
