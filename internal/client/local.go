package client

import (
	"context"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// LocalClient implements SpecsClient in-process against a local store.
// Close closes the store.
type LocalClient struct {
	engine *engine.Engine
	store  store.Store
}

// NewLocalClient returns a client running e over s.
func NewLocalClient(e *engine.Engine, s store.Store) *LocalClient {
	return &LocalClient{engine: e, store: s}
}

func (c *LocalClient) Close() error { return c.store.Close() }

func (c *LocalClient) ResolveFields(ctx context.Context, recordType string) ([]string, error) {
	return c.engine.ResolveFields(ctx, recordType)
}

func (c *LocalClient) ListAttributes(ctx context.Context, recordType string, rows []model.Row) ([]string, error) {
	return c.engine.ListAttributes(ctx, recordType, rows)
}

func (c *LocalClient) Resolve(ctx context.Context, req *ResolveRequest) (*model.Resolution, error) {
	return c.engine.Resolve(ctx, engine.ResolveRequest{
		SpecificationID: req.SpecificationID,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
	})
}

func (c *LocalClient) Apply(ctx context.Context, req *ApplyRequest) (*model.ApplyResult, error) {
	return c.engine.Apply(ctx, engine.ApplyRequest{
		SpecificationID: req.SpecificationID,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		Rows:            req.Rows,
	})
}

func (c *LocalClient) Validate(_ context.Context, rows []model.Row) error {
	return c.engine.Validate(rows)
}

func (c *LocalClient) PutRecordType(ctx context.Context, rt *model.RecordType) (*model.RecordType, error) {
	if err := c.engine.PutRecordType(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (c *LocalClient) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return c.engine.GetRecordType(ctx, name)
}

func (c *LocalClient) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	return c.engine.ListRecordTypes(ctx)
}

func (c *LocalClient) PutRecord(ctx context.Context, r *model.Record) (*model.Record, error) {
	if err := c.engine.PutRecord(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *LocalClient) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return c.engine.GetRecord(ctx, recordType, id)
}

func (c *LocalClient) DeleteRecord(ctx context.Context, recordType, id string) error {
	return c.engine.DeleteRecord(ctx, recordType, id)
}

func (c *LocalClient) CreateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error) {
	if err := c.engine.CreateSpecification(ctx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func (c *LocalClient) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return c.engine.GetSpecification(ctx, id)
}

func (c *LocalClient) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return c.engine.ListSpecifications(ctx, filter)
}

func (c *LocalClient) UpdateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error) {
	if err := c.engine.UpdateSpecification(ctx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func (c *LocalClient) DeleteSpecification(ctx context.Context, id string) error {
	return c.engine.DeleteSpecification(ctx, id)
}

func (c *LocalClient) Generate(ctx context.Context, specID string, rows []model.Row) (*model.ApplyResult, error) {
	return c.engine.Generate(ctx, specID, rows)
}

func (c *LocalClient) Facets(ctx context.Context, recordType string) ([]model.Facet, error) {
	return c.engine.Facets(ctx, recordType)
}

func (c *LocalClient) FilterRecords(ctx context.Context, recordType string, filters []model.FacetFilter) ([]string, error) {
	return c.engine.FilterRecords(ctx, recordType, filters)
}

func (c *LocalClient) Health(context.Context) (string, error) { return "ok", nil }
