package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store/sqlite"
)

// newTestStore opens an in-memory store and closes it with the test.
func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	s, err := sqlite.New(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedStore writes two specifications and one stored value.
func seedStore(t *testing.T, s *sqlite.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for _, spec := range []*model.Specification{
		{ID: "spec-b", Title: "Item", AppliesToType: "Item", Attributes: []*model.Attribute{{Name: "Grade"}}},
		{ID: "spec-a", Title: "Item - pie", AppliesToType: "Item", AppliesToScope: "pie", Attributes: []*model.Attribute{{Name: "Color", BoundField: "color"}}},
	} {
		if err := s.CreateSpecification(ctx, spec); err != nil {
			t.Fatalf("CreateSpecification(%s): %v", spec.ID, err)
		}
	}
	if err := s.CreateValue(ctx, &model.Value{
		ID:              "val-1",
		SpecificationID: "spec-b",
		ReferenceType:   "Item",
		ReferenceID:     "pie",
		Attribute:       "Grade",
		Value:           "A",
	}); err != nil {
		t.Fatalf("CreateValue: %v", err)
	}
}

func TestExportJSONL_Empty(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), s, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Type != "header" || h.Version != "1" {
		t.Fatalf("unexpected header: %+v", h)
	}
	if h.SpecificationCount != 0 || h.ValueCount != 0 {
		t.Fatalf("expected zero counts, got specs=%d values=%d", h.SpecificationCount, h.ValueCount)
	}
}

func TestExportJSONL_SpecificationsAndValues(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), s, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 specifications + 1 value
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.SpecificationCount != 2 || h.ValueCount != 1 {
		t.Fatalf("unexpected counts: specs=%d values=%d", h.SpecificationCount, h.ValueCount)
	}

	var wantTypes = []string{"specification", "specification", "value"}
	var wantIDs = []string{"spec-a", "spec-b", "val-1"}
	for i, line := range lines[1:] {
		var rec struct {
			Type string `json:"type"`
			Data struct {
				ID         string             `json:"id"`
				Attributes []*model.Attribute `json:"attributes"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if rec.Type != wantTypes[i] || rec.Data.ID != wantIDs[i] {
			t.Errorf("line %d: got %s/%s, want %s/%s", i+1, rec.Type, rec.Data.ID, wantTypes[i], wantIDs[i])
		}
		if rec.Type == "specification" && len(rec.Data.Attributes) != 1 {
			t.Errorf("line %d: expected 1 attribute, got %d", i+1, len(rec.Data.Attributes))
		}
	}
}

func TestExportJSONL_NoHTMLEscaping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateSpecification(ctx, &model.Specification{
		ID:            "spec-1",
		Title:         "Bolts & Nuts",
		AppliesToType: "Item",
		Attributes:    []*model.Attribute{{Name: "<Thread>"}},
	}); err != nil {
		t.Fatalf("CreateSpecification: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if !strings.Contains(buf.String(), "Bolts & Nuts") || !strings.Contains(buf.String(), "<Thread>") {
		t.Fatalf("expected unescaped text in export:\n%s", buf.String())
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
