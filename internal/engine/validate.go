package engine

import "github.com/alfredjeanlab/specs/internal/model"

// ValidateRows rejects a candidate row set that names the same attribute
// twice, whether the rows are field-bound or free-form. Rows without an
// attribute are ignored. It has no side effects.
func ValidateRows(rows []model.Row) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Attribute == "" {
			continue
		}
		if _, dup := seen[r.Attribute]; dup {
			return &model.DuplicateAttributeError{Attribute: r.Attribute, Field: r.Field}
		}
		seen[r.Attribute] = struct{}{}
	}
	return nil
}

// Validate is ValidateRows exposed on the engine for transport layers.
func (e *Engine) Validate(rows []model.Row) error {
	return ValidateRows(rows)
}
