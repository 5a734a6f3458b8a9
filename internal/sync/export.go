package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version            string    `json:"version"`
	Type               string    `json:"type"`
	Timestamp          time.Time `json:"timestamp"`
	SpecificationCount int       `json:"specification_count"`
	ValueCount         int       `json:"value_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes all specifications and stored values from the store as
// JSONL to w. Specifications carry their attributes; both sections are
// sorted by ID so successive exports diff cleanly.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	specs, err := s.ListSpecifications(ctx, model.SpecificationFilter{})
	if err != nil {
		return fmt.Errorf("list specifications: %w", err)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].ID < specs[j].ID
	})

	values, err := s.ListValues(ctx, model.ValueFilter{})
	if err != nil {
		return fmt.Errorf("list values: %w", err)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].ID < values[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:            "1",
		Type:               "header",
		Timestamp:          time.Now().UTC(),
		SpecificationCount: len(specs),
		ValueCount:         len(values),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, spec := range specs {
		if err := enc.Encode(record{Type: "specification", Data: spec}); err != nil {
			return fmt.Errorf("encode specification %s: %w", spec.ID, err)
		}
	}

	for _, v := range values {
		if err := enc.Encode(record{Type: "value", Data: v}); err != nil {
			return fmt.Errorf("encode value %s: %w", v.ID, err)
		}
	}

	return nil
}
