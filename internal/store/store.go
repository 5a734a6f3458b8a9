package store

import (
	"context"

	"github.com/alfredjeanlab/specs/internal/model"
)

// Store defines the persistence interface for specifications, their values,
// and the record schemas and records they project onto.
//
// Lookups of a single missing row return sql.ErrNoRows.
type Store interface {
	// Record types
	PutRecordType(ctx context.Context, rt *model.RecordType) error
	GetRecordType(ctx context.Context, name string) (*model.RecordType, error)
	ListRecordTypes(ctx context.Context) ([]*model.RecordType, error)

	// Records
	PutRecord(ctx context.Context, r *model.Record) error
	GetRecord(ctx context.Context, recordType, id string) (*model.Record, error)
	ListRecords(ctx context.Context, recordType string) ([]*model.Record, error)
	DeleteRecord(ctx context.Context, recordType, id string) error // also deletes the record's values

	// Specifications (attributes are read and written with their parent)
	CreateSpecification(ctx context.Context, spec *model.Specification) error
	GetSpecification(ctx context.Context, id string) (*model.Specification, error)
	ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) // newest first
	UpdateSpecification(ctx context.Context, spec *model.Specification) error
	DeleteSpecification(ctx context.Context, id string) error

	// Values
	GetValues(ctx context.Context, specID, refType, refID string) ([]*model.Value, error)
	ListValues(ctx context.Context, filter model.ValueFilter) ([]*model.Value, error)
	CreateValue(ctx context.Context, v *model.Value) error
	UpdateValue(ctx context.Context, v *model.Value) error
	DeleteValue(ctx context.Context, id string) error

	// Catalog
	ListFreeFormAttributes(ctx context.Context, recordType string) ([]string, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
