package engine

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// Generate applies rows to every record the specification applies to: its
// scoped record, or every record of its type for a template. All targets are
// written in one transaction under the same rules as Apply.
func (e *Engine) Generate(ctx context.Context, specID string, rows []model.Row) (*model.ApplyResult, error) {
	if err := ValidateRows(rows); err != nil {
		return nil, err
	}
	spec, err := loadSpecification(ctx, e.store, specID)
	if err != nil {
		return nil, err
	}
	eligible, err := e.fields.Resolve(ctx, spec.AppliesToType)
	if err != nil {
		return nil, err
	}
	if err := checkRows(spec, eligible, rows); err != nil {
		return nil, err
	}

	result := &model.ApplyResult{}
	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		targets, err := generateTargets(ctx, tx, spec)
		if err != nil {
			return err
		}
		for _, id := range targets {
			n, err := upsertValues(ctx, tx, spec.ID, spec.AppliesToType, id, rows)
			if err != nil {
				return fmt.Errorf("generate %s/%s: %w", spec.AppliesToType, id, err)
			}
			result.Written += n
			result.References = append(result.References, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("values generated",
		"specification", spec.ID,
		"records", len(result.References),
		"written", result.Written)
	return result, nil
}

func generateTargets(ctx context.Context, tx store.Store, spec *model.Specification) ([]string, error) {
	if !spec.IsTemplate() {
		if _, err := loadRecord(ctx, tx, spec.AppliesToType, spec.AppliesToScope); err != nil {
			return nil, err
		}
		return []string{spec.AppliesToScope}, nil
	}
	records, err := tx.ListRecords(ctx, spec.AppliesToType)
	if err != nil {
		return nil, fmt.Errorf("list records of %s: %w", spec.AppliesToType, err)
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids, nil
}
