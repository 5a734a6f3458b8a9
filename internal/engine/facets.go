package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/alfredjeanlab/specs/internal/model"
)

// typeAttributes returns the attribute definitions of every specification of
// recordType keyed by name. When several specifications define a name the
// most recently modified definition wins, as in Resolve.
func (e *Engine) typeAttributes(ctx context.Context, recordType string) ([]*model.Specification, map[string]*model.Attribute, error) {
	specs, err := e.store.ListSpecifications(ctx, model.SpecificationFilter{AppliesToType: recordType})
	if err != nil {
		return nil, nil, fmt.Errorf("list specifications for %s: %w", recordType, err)
	}
	defs := make(map[string]*model.Attribute)
	for _, spec := range specs {
		for _, a := range spec.Attributes {
			if _, ok := defs[a.Name]; !ok {
				defs[a.Name] = a
			}
		}
	}
	return specs, defs, nil
}

// effectiveValues resolves every record of recordType and returns the
// non-empty values of attrs keyed by record ID, then attribute.
func (e *Engine) effectiveValues(ctx context.Context, recordType string, specs []*model.Specification, attrs []string) (map[string]map[string]string, error) {
	records, err := e.store.ListRecords(ctx, recordType)
	if err != nil {
		return nil, fmt.Errorf("list records of %s: %w", recordType, err)
	}
	values, err := e.store.ListValues(ctx, model.ValueFilter{ReferenceType: recordType, Attributes: attrs})
	if err != nil {
		return nil, fmt.Errorf("list values of %s: %w", recordType, err)
	}
	type key struct{ spec, ref string }
	stored := make(map[key][]*model.Value)
	for _, v := range values {
		k := key{v.SpecificationID, v.ReferenceID}
		stored[k] = append(stored[k], v)
	}

	wanted := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		wanted[a] = true
	}
	out := make(map[string]map[string]string, len(records))
	for _, record := range records {
		var applicable []*model.Specification
		for _, spec := range specs {
			if spec.AppliesTo(record.Type, record.ID) {
				applicable = append(applicable, spec)
			}
		}
		res, err := resolveRecord(ctx, applicable, record, func(_ context.Context, specID string) ([]*model.Value, error) {
			return stored[key{specID, record.ID}], nil
		})
		if err != nil {
			return nil, err
		}
		for _, r := range res.Rows {
			if !wanted[r.Attribute] || r.Text() == "" {
				continue
			}
			if out[record.ID] == nil {
				out[record.ID] = make(map[string]string)
			}
			out[record.ID][r.Attribute] = r.Text()
		}
	}
	return out, nil
}

// Facets summarizes, for each attribute defined by a specification of
// recordType, the effective values its records carry. Facets are sorted by
// attribute name.
func (e *Engine) Facets(ctx context.Context, recordType string) ([]model.Facet, error) {
	if _, err := e.fields.Resolve(ctx, recordType); err != nil {
		return nil, err
	}
	specs, defs, err := e.typeAttributes(ctx, recordType)
	if err != nil {
		return nil, err
	}
	attrs := make([]string, 0, len(defs))
	for name := range defs {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)
	if len(attrs) == 0 {
		return []model.Facet{}, nil
	}

	byRecord, err := e.effectiveValues(ctx, recordType, specs, attrs)
	if err != nil {
		return nil, err
	}
	seen := make(map[string][]string, len(attrs))
	for _, vals := range byRecord {
		for attr, v := range vals {
			seen[attr] = append(seen[attr], v)
		}
	}

	facets := make([]model.Facet, 0, len(attrs))
	for _, name := range attrs {
		a := defs[name]
		f := model.Facet{Attribute: name, Field: a.BoundField, Kind: model.KindOf(a)}
		switch f.Kind {
		case model.FacetNumeric:
			f.Min, f.Max = numericRange(seen[name])
		case model.FacetDate:
			f.Min, f.Max = dateRange(seen[name])
		default:
			vals := slices.Clone(seen[name])
			slices.Sort(vals)
			f.Values = slices.Compact(vals)
		}
		facets = append(facets, f)
	}
	return facets, nil
}

func numericRange(values []string) (lo, hi string) {
	var nums []float64
	for _, v := range values {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return "", ""
	}
	return formatNumber(slices.Min(nums)), formatNumber(slices.Max(nums))
}

func formatNumber(n float64) string { return strconv.FormatFloat(n, 'f', -1, 64) }

func dateRange(values []string) (lo, hi string) {
	var dates []time.Time
	for _, v := range values {
		if d, err := time.Parse(DateLayout, v); err == nil {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return "", ""
	}
	first := slices.MinFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	last := slices.MaxFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return first.Format(DateLayout), last.Format(DateLayout)
}

// FilterRecords returns the IDs of records of recordType matching any of
// filters, sorted. Empty filters are ignored; with none left the result is
// empty.
func (e *Engine) FilterRecords(ctx context.Context, recordType string, filters []model.FacetFilter) ([]string, error) {
	if _, err := e.fields.Resolve(ctx, recordType); err != nil {
		return nil, err
	}
	specs, defs, err := e.typeAttributes(ctx, recordType)
	if err != nil {
		return nil, err
	}

	var matchers []facetMatcher
	for _, f := range filters {
		if f.IsEmpty() {
			continue
		}
		a, ok := defs[f.Attribute]
		if !ok {
			return nil, model.Violation(f.Attribute, "no specification of %s defines this attribute", recordType)
		}
		m, err := newFacetMatcher(a, f)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	if len(matchers) == 0 {
		return []string{}, nil
	}

	attrs := make([]string, 0, len(matchers))
	for _, m := range matchers {
		attrs = append(attrs, m.attribute)
	}
	byRecord, err := e.effectiveValues(ctx, recordType, specs, attrs)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for id, vals := range byRecord {
		for _, m := range matchers {
			if v, ok := vals[m.attribute]; ok && m.match(v) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// facetMatcher tests effective values against one filter. Bounds are parsed
// once; lo and hi are nil when open.
type facetMatcher struct {
	attribute string
	kind      model.FacetKind
	values    map[string]bool
	lo, hi    *float64
}

func newFacetMatcher(a *model.Attribute, f model.FacetFilter) (facetMatcher, error) {
	m := facetMatcher{attribute: a.Name, kind: model.KindOf(a), values: make(map[string]bool, len(f.Values))}
	for _, v := range f.Values {
		m.values[v] = true
	}
	if !f.HasRange() {
		return m, nil
	}
	if m.kind == model.FacetValues {
		return m, model.Violation(a.Name, "range filters need a numeric or date attribute")
	}
	var err error
	if m.lo, err = m.parseBound(f.Min); err != nil {
		return m, err
	}
	if m.hi, err = m.parseBound(f.Max); err != nil {
		return m, err
	}
	if m.lo != nil && m.hi != nil && *m.lo > *m.hi {
		m.lo, m.hi = m.hi, m.lo
	}
	return m, nil
}

// parseBound maps a bound onto a comparable number; dates become Unix seconds.
func (m facetMatcher) parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	n, ok := m.number(s)
	if !ok {
		want := "number"
		if m.kind == model.FacetDate {
			want = "date (YYYY-MM-DD)"
		}
		return nil, model.Violation(m.attribute, "bound %q is not a %s", s, want)
	}
	return &n, nil
}

func (m facetMatcher) number(s string) (float64, bool) {
	if m.kind == model.FacetDate {
		d, err := time.Parse(DateLayout, s)
		return float64(d.Unix()), err == nil
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

func (m facetMatcher) match(v string) bool {
	if m.values[v] {
		return true
	}
	if m.lo == nil && m.hi == nil {
		return false
	}
	n, ok := m.number(v)
	if !ok {
		return false
	}
	return (m.lo == nil || cmp.Compare(n, *m.lo) >= 0) && (m.hi == nil || cmp.Compare(n, *m.hi) <= 0)
}
