// Package client provides transport-agnostic interfaces for the specs service
// with HTTP/JSON, gRPC and in-process implementations.
package client

import (
	"context"

	"github.com/alfredjeanlab/specs/internal/model"
)

// SyncClient covers the synchronization operations of an editing surface.
// It is implemented by HTTPClient, GRPCClient and LocalClient.
type SyncClient interface {
	ResolveFields(ctx context.Context, recordType string) ([]string, error)
	ListAttributes(ctx context.Context, recordType string, rows []model.Row) ([]string, error)
	Resolve(ctx context.Context, req *ResolveRequest) (*model.Resolution, error)
	Apply(ctx context.Context, req *ApplyRequest) (*model.ApplyResult, error)
	Validate(ctx context.Context, rows []model.Row) error

	// Lifecycle
	Close() error
}

// SpecsClient is the interface all specs CLI commands use. It adds schema,
// record and specification management to SyncClient and is implemented by
// HTTPClient and LocalClient.
type SpecsClient interface {
	SyncClient

	// Record types
	PutRecordType(ctx context.Context, rt *model.RecordType) (*model.RecordType, error)
	GetRecordType(ctx context.Context, name string) (*model.RecordType, error)
	ListRecordTypes(ctx context.Context) ([]*model.RecordType, error)

	// Records
	PutRecord(ctx context.Context, r *model.Record) (*model.Record, error)
	GetRecord(ctx context.Context, recordType, id string) (*model.Record, error)
	DeleteRecord(ctx context.Context, recordType, id string) error

	// Specifications
	CreateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error)
	GetSpecification(ctx context.Context, id string) (*model.Specification, error)
	ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error)
	UpdateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error)
	DeleteSpecification(ctx context.Context, id string) error
	Generate(ctx context.Context, specID string, rows []model.Row) (*model.ApplyResult, error)

	// Faceted search
	Facets(ctx context.Context, recordType string) ([]model.Facet, error)
	FilterRecords(ctx context.Context, recordType string, filters []model.FacetFilter) ([]string, error)

	// Health
	Health(ctx context.Context) (string, error)
}

// ResolveRequest identifies the (specification, record) pair to resolve.
// SpecificationID is optional when resolving a record.
type ResolveRequest struct {
	SpecificationID string `json:"specification,omitempty"`
	ReferenceType   string `json:"reference_type"`
	ReferenceID     string `json:"reference_id"`
}

// ApplyRequest holds a submitted row set for one (specification, record) pair.
type ApplyRequest struct {
	SpecificationID string      `json:"specification"`
	ReferenceType   string      `json:"reference_type"`
	ReferenceID     string      `json:"reference_id"`
	Rows            []model.Row `json:"rows"`
}
