package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/specs/internal/model"
)

// ListAttributes returns the free-form attribute names offered for a row set
// on recordType: every free-form name used by specifications of that type
// (all types when recordType is empty) plus the free-form names in rows,
// minus any name rows already bind to a field. The result is sorted and
// contains no empty names.
func (e *Engine) ListAttributes(ctx context.Context, recordType string, rows []model.Row) ([]string, error) {
	known, err := e.store.ListFreeFormAttributes(ctx, recordType)
	if err != nil {
		return nil, fmt.Errorf("list free-form attributes: %w", err)
	}

	bound := make(map[string]bool)
	for _, r := range rows {
		if r.Attribute != "" && r.Field != "" {
			bound[r.Attribute] = true
		}
	}

	set := make(map[string]struct{}, len(known)+len(rows))
	for _, name := range known {
		set[name] = struct{}{}
	}
	for _, r := range rows {
		if r.Field == "" {
			set[r.Attribute] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		if name == "" || bound[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
