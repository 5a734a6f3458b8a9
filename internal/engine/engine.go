// Package engine reconciles specification templates, live record fields and
// stored value overrides. It owns the rules for which fields can be bound,
// how the effective value of an attribute is computed, and how a submitted
// row set is persisted.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// DefinitionReferenceType is the reference type a specification uses to
// refer to itself. Resolving a specification against its own name yields the
// unresolved definition rows.
const DefinitionReferenceType = "Specification"

// Engine runs the synchronization operations against a store.
type Engine struct {
	store  store.Store
	fields *FieldResolver
	logger *slog.Logger
}

// New returns an Engine backed by s. A nil logger uses slog.Default().
func New(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  s,
		fields: NewFieldResolver(s),
		logger: logger,
	}
}

// ResolveFields returns the field names of recordType eligible for attribute
// binding, sorted ascending.
func (e *Engine) ResolveFields(ctx context.Context, recordType string) ([]string, error) {
	fields, err := e.fields.Resolve(ctx, recordType)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), fields...), nil
}

// --- Record types ---

// PutRecordType creates or replaces a record type schema. A schema that
// would leave a specification attribute or stored value bound to a field the
// type no longer offers is rejected.
func (e *Engine) PutRecordType(ctx context.Context, rt *model.RecordType) error {
	if err := model.ValidateRecordType(rt); err != nil {
		return err
	}
	eligible := EligibleFields(rt)
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := checkBindingsKept(ctx, tx, rt.Name, eligible); err != nil {
			return err
		}
		if err := tx.PutRecordType(ctx, rt); err != nil {
			return fmt.Errorf("put record type %q: %w", rt.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.fields.Invalidate(rt.Name)
	e.logger.Info("record type updated", "type", rt.Name, "fields", len(rt.Fields))
	return nil
}

// checkBindingsKept verifies every field binding on recordType survives a
// schema whose eligible fields are eligible.
func checkBindingsKept(ctx context.Context, tx store.Store, recordType string, eligible []string) error {
	specs, err := tx.ListSpecifications(ctx, model.SpecificationFilter{AppliesToType: recordType})
	if err != nil {
		return fmt.Errorf("list specifications for %s: %w", recordType, err)
	}
	for _, spec := range specs {
		for _, a := range spec.Attributes {
			if a.BoundField != "" && !contains(eligible, a.BoundField) {
				return model.Violation(a.Name, "specification %q binds field %q, which %s would no longer offer", spec.ID, a.BoundField, recordType)
			}
		}
	}
	values, err := tx.ListValues(ctx, model.ValueFilter{ReferenceType: recordType})
	if err != nil {
		return fmt.Errorf("list values for %s: %w", recordType, err)
	}
	for _, v := range values {
		if v.BoundField != "" && !contains(eligible, v.BoundField) {
			return model.Violation(v.Attribute, "value on %s %q binds field %q, which %s would no longer offer", recordType, v.ReferenceID, v.BoundField, recordType)
		}
	}
	return nil
}

// GetRecordType returns a stored or builtin record type.
func (e *Engine) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return lookupType(ctx, e.store, name)
}

// ListRecordTypes returns stored record types plus builtins not overridden
// by a stored schema, sorted by name.
func (e *Engine) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	stored, err := e.store.ListRecordTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list record types: %w", err)
	}
	seen := make(map[string]bool, len(stored))
	for _, rt := range stored {
		seen[rt.Name] = true
	}
	types := stored
	for name, rt := range builtinTypes {
		if !seen[name] {
			types = append(types, rt)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}

// --- Records ---

// PutRecord creates or replaces a host record. The record type must be known
// and the field values must fit its schema.
func (e *Engine) PutRecord(ctx context.Context, r *model.Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return &model.ValidationError{Errors: []model.FieldError{{Field: "id", Message: "is required"}}}
	}
	rt, err := lookupType(ctx, e.store, r.Type)
	if err != nil {
		return err
	}
	if err := model.ValidateRecordFields(r, rt); err != nil {
		return err
	}
	if err := e.store.PutRecord(ctx, r); err != nil {
		return fmt.Errorf("put record %s/%s: %w", r.Type, r.ID, err)
	}
	return nil
}

// GetRecord returns a host record, or sql.ErrNoRows when it does not exist.
func (e *Engine) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return e.store.GetRecord(ctx, recordType, id)
}

// DeleteRecord removes a host record together with its stored values. A
// record that a specification is scoped to cannot be deleted until that
// specification is.
func (e *Engine) DeleteRecord(ctx context.Context, recordType, id string) error {
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		scoped, err := tx.ListSpecifications(ctx, model.SpecificationFilter{AppliesToType: recordType, AppliesToScope: id})
		if err != nil {
			return fmt.Errorf("list scoped specifications: %w", err)
		}
		if len(scoped) > 0 {
			return model.Violation("", "%s %q is the scope of specification %q", recordType, id, scoped[0].ID)
		}
		return tx.DeleteRecord(ctx, recordType, id)
	})
	if err != nil {
		return err
	}
	e.logger.Info("record deleted", "reference_type", recordType, "reference_id", id)
	return nil
}

// loadRecord fetches the reference record of a record-mode call.
func loadRecord(ctx context.Context, s store.Store, recordType, id string) (*model.Record, error) {
	r, err := s.GetRecord(ctx, recordType, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Violation("", "record %s %q does not exist", recordType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", recordType, id, err)
	}
	return r, nil
}

// loadSpecification fetches a specification, reporting a missing one as a
// constraint violation.
func loadSpecification(ctx context.Context, s store.Store, id string) (*model.Specification, error) {
	spec, err := s.GetSpecification(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Violation("", "specification %q does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get specification %q: %w", id, err)
	}
	return spec, nil
}
