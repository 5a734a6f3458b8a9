package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// builtinTypes are served when the store has no schema of the same name.
var builtinTypes = map[string]*model.RecordType{
	"Item": {
		Name: "Item",
		Fields: []model.FieldDef{
			{Name: "name", Type: model.FieldTypeData, Label: "ID"},
			{Name: "item_code", Type: model.FieldTypeData, Label: "Item Code"},
			{Name: "item_name", Type: model.FieldTypeData, Label: "Item Name"},
			{Name: "item_group", Type: model.FieldTypeLink, Label: "Item Group", Options: "Item Group"},
			{Type: model.FieldTypeSectionBreak},
			{Name: "description", Type: model.FieldTypeText, Label: "Description"},
			{Name: "stock_uom", Type: model.FieldTypeLink, Label: "Default Unit of Measure", Options: "UOM"},
			{Name: "weight_per_unit", Type: model.FieldTypeFloat, Label: "Weight Per Unit"},
			{Name: "weight_uom", Type: model.FieldTypeLink, Label: "Weight UOM", Options: "UOM"},
			{Name: "color", Type: model.FieldTypeColor, Label: "Color"},
			{Name: "size", Type: model.FieldTypeData, Label: "Size"},
			{Name: "shelf_life_in_days", Type: model.FieldTypeInt, Label: "Shelf Life In Days"},
			{Name: "end_of_life", Type: model.FieldTypeDate, Label: "End of Life"},
			{Name: "is_stock_item", Type: model.FieldTypeCheck, Label: "Maintain Stock"},
			{Type: model.FieldTypeColumnBreak},
			{Name: "uoms", Type: model.FieldTypeTable, Label: "UOMs", Options: "UOM Conversion Detail"},
			{Name: "image", Type: model.FieldTypeImage, Label: "Image"},
		},
	},
}

// EligibleFields returns the names of fields on rt that may carry an
// attribute binding, sorted ascending. Structural fields and the record
// identifier are excluded.
func EligibleFields(rt *model.RecordType) []string {
	var names []string
	for _, f := range rt.Fields {
		if f.Name == "" || f.Name == model.IdentifierField || f.Type.IsStructural() {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// FieldResolver answers resolve_fields from the record type registry, caching
// results per type. It is safe for concurrent use.
type FieldResolver struct {
	store store.Store

	mu    sync.RWMutex
	cache map[string][]string
	// gen counts invalidations per type. A lookup that raced with one is
	// returned but not cached.
	gen map[string]uint64
}

// NewFieldResolver returns a FieldResolver reading schemas from s.
func NewFieldResolver(s store.Store) *FieldResolver {
	return &FieldResolver{store: s, cache: make(map[string][]string), gen: make(map[string]uint64)}
}

// Resolve returns the eligible field names of recordType. The returned slice
// is shared; callers must not modify it.
func (r *FieldResolver) Resolve(ctx context.Context, recordType string) ([]string, error) {
	r.mu.RLock()
	fields, ok := r.cache[recordType]
	gen := r.gen[recordType]
	r.mu.RUnlock()
	if ok {
		return fields, nil
	}

	rt, err := lookupType(ctx, r.store, recordType)
	if err != nil {
		return nil, err
	}
	fields = EligibleFields(rt)

	r.mu.Lock()
	if r.gen[recordType] == gen {
		r.cache[recordType] = fields
	}
	r.mu.Unlock()
	return fields, nil
}

// Invalidate drops the cached fields of recordType.
func (r *FieldResolver) Invalidate(recordType string) {
	r.mu.Lock()
	delete(r.cache, recordType)
	r.gen[recordType]++
	r.mu.Unlock()
}

// lookupType loads a record type from s, falling back to the builtin set.
func lookupType(ctx context.Context, s store.Store, name string) (*model.RecordType, error) {
	if name == "" {
		return nil, &model.UnknownTypeError{Type: name}
	}
	rt, err := s.GetRecordType(ctx, name)
	if err == nil {
		return rt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get record type %q: %w", name, err)
	}
	if rt, ok := builtinTypes[name]; ok {
		return rt, nil
	}
	return nil, &model.UnknownTypeError{Type: name}
}

func contains(list []string, s string) bool {
	i := sort.SearchStrings(list, s)
	return i < len(list) && list[i] == s
}
