package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/specs/internal/idgen"
	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// CreateSpecification validates and stores a new specification. A missing ID
// is generated; the title is always derived from the target.
func (e *Engine) CreateSpecification(ctx context.Context, spec *model.Specification) error {
	if err := e.checkDefinition(ctx, spec); err != nil {
		return err
	}
	if spec.ID == "" {
		id, err := idgen.SpecificationName()
		if err != nil {
			return err
		}
		spec.ID = id
	}
	spec.Title = spec.DefaultTitle()

	if err := e.store.CreateSpecification(ctx, spec); err != nil {
		return fmt.Errorf("create specification %q: %w", spec.ID, err)
	}
	e.logger.Info("specification created", "specification", spec.ID,
		"applies_to_type", spec.AppliesToType, "attributes", len(spec.Attributes))
	return nil
}

// UpdateSpecification replaces the definition of an existing specification.
// Stored values are kept; values of attributes that no longer exist surface
// as extra rows on resolve. Retargeting is rejected while stored values
// reference records the new type and scope would not cover.
func (e *Engine) UpdateSpecification(ctx context.Context, spec *model.Specification) error {
	cur, err := loadSpecification(ctx, e.store, spec.ID)
	if err != nil {
		return err
	}
	if err := e.checkDefinition(ctx, spec); err != nil {
		return err
	}
	spec.Title = spec.DefaultTitle()

	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if cur.AppliesToType != spec.AppliesToType || cur.AppliesToScope != spec.AppliesToScope {
			values, err := tx.ListValues(ctx, model.ValueFilter{SpecificationID: spec.ID})
			if err != nil {
				return fmt.Errorf("list values of %q: %w", spec.ID, err)
			}
			for _, v := range values {
				if !spec.AppliesTo(v.ReferenceType, v.ReferenceID) {
					return model.Violation(v.Attribute, "specification %q has values on %s %q, which %s would not cover",
						spec.ID, v.ReferenceType, v.ReferenceID, spec.DefaultTitle())
				}
			}
		}
		if err := tx.UpdateSpecification(ctx, spec); err != nil {
			return fmt.Errorf("update specification %q: %w", spec.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("specification updated", "specification", spec.ID, "attributes", len(spec.Attributes))
	return nil
}

// GetSpecification returns a specification with its attributes, or
// sql.ErrNoRows when it does not exist.
func (e *Engine) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return e.store.GetSpecification(ctx, id)
}

// ListSpecifications returns specifications matching filter, most recently
// modified first.
func (e *Engine) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return e.store.ListSpecifications(ctx, filter)
}

// DeleteSpecification removes a specification, its attributes and its values.
func (e *Engine) DeleteSpecification(ctx context.Context, id string) error {
	if err := e.store.DeleteSpecification(ctx, id); err != nil {
		return err
	}
	e.logger.Info("specification deleted", "specification", id)
	return nil
}

// Applicable returns the specifications that apply to a record: same type and
// either unscoped or scoped to that record, most recently modified first.
func (e *Engine) Applicable(ctx context.Context, refType, refID string) ([]*model.Specification, error) {
	specs, err := e.store.ListSpecifications(ctx, model.SpecificationFilter{AppliesToType: refType})
	if err != nil {
		return nil, fmt.Errorf("list specifications for %s: %w", refType, err)
	}
	var out []*model.Specification
	for _, s := range specs {
		if s.AppliesTo(refType, refID) {
			out = append(out, s)
		}
	}
	return out, nil
}

// checkDefinition enforces the definition-level invariants that need the
// schema registry and the store.
func (e *Engine) checkDefinition(ctx context.Context, spec *model.Specification) error {
	if err := model.ValidateSpecification(spec); err != nil {
		return err
	}
	eligible, err := e.fields.Resolve(ctx, spec.AppliesToType)
	if err != nil {
		return err
	}
	for _, a := range spec.Attributes {
		if a.BoundField != "" && !contains(eligible, a.BoundField) {
			return model.Violation(a.Name, "field %q is not eligible for binding on %s", a.BoundField, spec.AppliesToType)
		}
	}

	if spec.IsTemplate() {
		return nil
	}
	if _, err := e.store.GetRecord(ctx, spec.AppliesToType, spec.AppliesToScope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Violation("", "scope %s %q does not exist", spec.AppliesToType, spec.AppliesToScope)
		}
		return fmt.Errorf("get scope record: %w", err)
	}
	existing, err := e.store.ListSpecifications(ctx, model.SpecificationFilter{
		AppliesToType:  spec.AppliesToType,
		AppliesToScope: spec.AppliesToScope,
	})
	if err != nil {
		return fmt.Errorf("list scoped specifications: %w", err)
	}
	for _, other := range existing {
		if other.ID != spec.ID {
			return model.Violation("", "%s %q already has specification %q", spec.AppliesToType, spec.AppliesToScope, other.ID)
		}
	}
	return nil
}
