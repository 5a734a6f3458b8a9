package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/specs/internal/model"
)

// ResolveRequest identifies the (specification, record) pair to resolve.
// SpecificationID is optional in record mode.
type ResolveRequest struct {
	SpecificationID string `json:"specification,omitempty"`
	ReferenceType   string `json:"reference_type"`
	ReferenceID     string `json:"reference_id"`
}

// definitionMode reports whether req refers to the specification itself
// rather than to a concrete record.
func (req ResolveRequest) definitionMode(spec *model.Specification) bool {
	if spec == nil {
		return false
	}
	return req.ReferenceID == "" ||
		(req.ReferenceType == DefinitionReferenceType && req.ReferenceID == spec.ID)
}

// Resolve computes the effective row set for a (specification, record) pair.
//
// In definition mode each attribute of the specification yields one
// unresolved row. In record mode each attribute of every applicable
// specification yields one row whose value is the stored override when it is
// non-empty, else the record's live field value for bound attributes, else
// the stored free-form value or "". When two specifications define the same
// attribute the most recently modified one wins; the other definition is
// reported in Shadowed when its bound field differs. Resolve never writes.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) (*model.Resolution, error) {
	var spec *model.Specification
	if req.SpecificationID != "" {
		var err error
		if spec, err = loadSpecification(ctx, e.store, req.SpecificationID); err != nil {
			return nil, err
		}
	}
	if req.definitionMode(spec) {
		return definitionRows(spec), nil
	}

	if req.ReferenceType == "" || req.ReferenceID == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{
			{Field: "reference", Message: "reference_type and reference_id are required without a specification"},
		}}
	}
	if _, err := e.fields.Resolve(ctx, req.ReferenceType); err != nil {
		return nil, err
	}
	record, err := loadRecord(ctx, e.store, req.ReferenceType, req.ReferenceID)
	if err != nil {
		return nil, err
	}

	var specs []*model.Specification
	if spec != nil {
		if !spec.AppliesTo(record.Type, record.ID) {
			return nil, model.Violation("", "specification %q does not apply to %s %q", spec.ID, record.Type, record.ID)
		}
		specs = []*model.Specification{spec}
	} else if specs, err = e.Applicable(ctx, record.Type, record.ID); err != nil {
		return nil, err
	}

	return resolveRecord(ctx, specs, record, func(ctx context.Context, specID string) ([]*model.Value, error) {
		return e.store.GetValues(ctx, specID, record.Type, record.ID)
	})
}

// valueSource returns the stored values of one specification on the record
// being resolved.
type valueSource func(ctx context.Context, specID string) ([]*model.Value, error)

func definitionRows(spec *model.Specification) *model.Resolution {
	rows := make([]model.Row, 0, len(spec.Attributes))
	for _, a := range spec.Attributes {
		rows = append(rows, model.Row{Specification: spec.ID, Attribute: a.Name, Field: a.BoundField})
	}
	return &model.Resolution{Mode: model.ModeDefinition, Rows: rows}
}

// resolveRecord walks specs in precedence order (newest first). Template
// attributes come first in definition order, followed by stored values of
// attributes no template defines, sorted by attribute.
func resolveRecord(ctx context.Context, specs []*model.Specification, record *model.Record, valuesOf valueSource) (*model.Resolution, error) {
	res := &model.Resolution{Mode: model.ModeRecord, Rows: []model.Row{}}
	var extras []model.Row

	// claim gives attr to the first (newest) specification defining it. A
	// later definition is reported as shadowed only when it binds a
	// different field, since otherwise both resolve to the same row.
	type claimant struct{ spec, field string }
	owner := make(map[string]claimant)
	claim := func(attr, specID, field string) bool {
		if by, taken := owner[attr]; taken {
			if by.field != field {
				res.Shadowed = append(res.Shadowed, model.Shadowed{
					Attribute: attr, Specification: specID, Field: field, ShadowedBy: by.spec,
				})
			}
			return false
		}
		owner[attr] = claimant{spec: specID, field: field}
		return true
	}

	for _, spec := range specs {
		values, err := valuesOf(ctx, spec.ID)
		if err != nil {
			return nil, fmt.Errorf("get values of %s: %w", spec.ID, err)
		}
		stored := make(map[string]*model.Value, len(values))
		for _, v := range values {
			stored[v.Attribute] = v
		}

		for _, a := range spec.Attributes {
			if claim(a.Name, spec.ID, a.BoundField) {
				res.Rows = append(res.Rows, effectiveRow(spec.ID, a.Name, a.BoundField, stored[a.Name], record))
			}
		}
		for _, v := range values {
			if spec.Attribute(v.Attribute) != nil {
				continue
			}
			if claim(v.Attribute, spec.ID, v.BoundField) {
				extras = append(extras, effectiveRow(spec.ID, v.Attribute, v.BoundField, v, record))
			}
		}
	}

	sort.SliceStable(extras, func(i, j int) bool { return extras[i].Attribute < extras[j].Attribute })
	res.Rows = append(res.Rows, extras...)
	return res, nil
}

// effectiveRow applies field precedence: a non-empty override wins, an empty
// or missing override on a bound attribute defers to the live field.
func effectiveRow(specID, attr, field string, v *model.Value, record *model.Record) model.Row {
	value := ""
	if v != nil {
		value = v.Value
	}
	if field != "" && value == "" {
		value = record.FieldText(field)
	}
	row := model.NewRow(attr, field, value)
	row.Specification = specID
	return row
}
