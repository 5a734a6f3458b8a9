package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alfredjeanlab/specs/internal/idgen"
	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// DateLayout is the accepted format of values of date attributes.
const DateLayout = model.DateLayout

// ApplyRequest is a submitted row set for one (specification, record) pair.
type ApplyRequest struct {
	SpecificationID string      `json:"specification"`
	ReferenceType   string      `json:"reference_type"`
	ReferenceID     string      `json:"reference_id"`
	Rows            []model.Row `json:"rows"`
}

// Apply persists a submitted row set. For each row:
//
//   - a non-empty value is created, or updated in place when it differs;
//   - an empty free-form value deletes the stored row;
//   - an empty bound value clears an existing non-empty override and never
//     creates a row.
//
// Stored rows not named in the submission are left alone. The call is
// all-or-nothing: any duplicate or constraint failure aborts it with no
// writes. Written counts rows created, updated or deleted, so repeating a
// call reports zero.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (*model.ApplyResult, error) {
	if err := ValidateRows(req.Rows); err != nil {
		return nil, err
	}
	eligible, err := e.fields.Resolve(ctx, req.ReferenceType)
	if err != nil {
		return nil, err
	}

	var written int
	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		spec, err := loadSpecification(ctx, tx, req.SpecificationID)
		if err != nil {
			return err
		}
		if !spec.AppliesTo(req.ReferenceType, req.ReferenceID) {
			return model.Violation("", "specification %q does not apply to %s %q", spec.ID, req.ReferenceType, req.ReferenceID)
		}
		if _, err := loadRecord(ctx, tx, req.ReferenceType, req.ReferenceID); err != nil {
			return err
		}
		if err := checkRows(spec, eligible, req.Rows); err != nil {
			return err
		}
		written, err = upsertValues(ctx, tx, spec.ID, req.ReferenceType, req.ReferenceID, req.Rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("values applied",
		"specification", req.SpecificationID,
		"reference_type", req.ReferenceType,
		"reference_id", req.ReferenceID,
		"written", written)
	return &model.ApplyResult{Written: written}, nil
}

// checkRows verifies every row against the specification and the eligible
// fields of its target type.
func checkRows(spec *model.Specification, eligible []string, rows []model.Row) error {
	fields := make(map[string]string, len(rows))
	for i, r := range rows {
		if r.Attribute == "" {
			if r.Field != "" || r.Text() != "" {
				return model.Violation("", "row %d has no attribute", i)
			}
			continue
		}
		if r.Field != "" {
			if !contains(eligible, r.Field) {
				return model.Violation(r.Attribute, "field %q is not eligible for binding on %s", r.Field, spec.AppliesToType)
			}
			if other, ok := fields[r.Field]; ok {
				return model.Violation(r.Attribute, "field %q is already bound to attribute %q", r.Field, other)
			}
			fields[r.Field] = r.Attribute
		}

		a := spec.Attribute(r.Attribute)
		if a == nil {
			continue
		}
		if a.BoundField != r.Field {
			return model.Violation(r.Attribute, "attribute is bound to field %q in specification %s, got %q", a.BoundField, spec.ID, r.Field)
		}
		if err := checkValueFormat(a, r.Text()); err != nil {
			return err
		}
	}
	return nil
}

func checkValueFormat(a *model.Attribute, value string) error {
	if value == "" {
		return nil
	}
	if a.NumericValues {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return model.Violation(a.Name, "value %q is not a number", value)
		}
	}
	if a.DateValues {
		if _, err := time.Parse(DateLayout, value); err != nil {
			return model.Violation(a.Name, "value %q is not a date (YYYY-MM-DD)", value)
		}
	}
	return nil
}

// upsertValues reconciles the stored values of one (specification, record)
// pair with rows and returns the number of rows written.
func upsertValues(ctx context.Context, tx store.Store, specID, refType, refID string, rows []model.Row) (int, error) {
	values, err := tx.GetValues(ctx, specID, refType, refID)
	if err != nil {
		return 0, fmt.Errorf("get values: %w", err)
	}
	stored := make(map[string]*model.Value, len(values))
	for _, v := range values {
		stored[v.Attribute] = v
	}

	written := 0
	for _, r := range rows {
		if r.Attribute == "" {
			continue
		}
		value := r.Text()
		cur := stored[r.Attribute]

		switch {
		case value != "":
			if cur == nil {
				id, err := idgen.ValueID()
				if err != nil {
					return 0, err
				}
				v := &model.Value{
					ID:              id,
					SpecificationID: specID,
					ReferenceType:   refType,
					ReferenceID:     refID,
					Attribute:       r.Attribute,
					BoundField:      r.Field,
					Value:           value,
				}
				if err := tx.CreateValue(ctx, v); err != nil {
					return 0, fmt.Errorf("create value %q: %w", r.Attribute, err)
				}
				written++
				continue
			}
			if cur.Value == value && cur.BoundField == r.Field {
				continue
			}
			cur.Value, cur.BoundField = value, r.Field
			if err := tx.UpdateValue(ctx, cur); err != nil {
				return 0, fmt.Errorf("update value %q: %w", r.Attribute, err)
			}
			written++

		case r.Field == "":
			if cur == nil {
				continue
			}
			if err := tx.DeleteValue(ctx, cur.ID); err != nil {
				return 0, fmt.Errorf("delete value %q: %w", r.Attribute, err)
			}
			written++

		default:
			if cur == nil || (cur.Value == "" && cur.BoundField == r.Field) {
				continue
			}
			cur.Value, cur.BoundField = "", r.Field
			if err := tx.UpdateValue(ctx, cur); err != nil {
				return 0, fmt.Errorf("clear value %q: %w", r.Attribute, err)
			}
			written++
		}
	}
	return written, nil
}
