package server

import (
	"net/http"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/model"
)

// attributesInput is the body of POST /v1/attributes.
type attributesInput struct {
	ReferenceType string      `json:"reference_type"`
	Rows          []model.Row `json:"rows"`
}

// handleListAttributes handles POST /v1/attributes.
func (s *SpecServer) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	var in attributesInput
	if !readJSON(w, r, &in) {
		return
	}

	names, err := s.engine.ListAttributes(r.Context(), in.ReferenceType, in.Rows)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attributes": names})
}

// handleResolve handles GET /v1/values/{type}/{id}.
func (s *SpecServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	req := engine.ResolveRequest{
		SpecificationID: r.URL.Query().Get("specification"),
		ReferenceType:   r.PathValue("type"),
		ReferenceID:     r.PathValue("id"),
	}

	res, err := s.engine.Resolve(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// applyInput is the body of PUT /v1/values/{type}/{id}.
type applyInput struct {
	SpecificationID string      `json:"specification"`
	Rows            []model.Row `json:"rows"`
}

// handleApply handles PUT /v1/values/{type}/{id}.
func (s *SpecServer) handleApply(w http.ResponseWriter, r *http.Request) {
	var in applyInput
	if !readJSON(w, r, &in) {
		return
	}
	if in.SpecificationID == "" {
		writeError(w, http.StatusBadRequest, "specification is required")
		return
	}
	req := engine.ApplyRequest{
		SpecificationID: in.SpecificationID,
		ReferenceType:   r.PathValue("type"),
		ReferenceID:     r.PathValue("id"),
		Rows:            in.Rows,
	}

	result, err := s.engine.Apply(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicValuesApplied, events.ValuesApplied{
		SpecificationID: req.SpecificationID,
		ReferenceType:   req.ReferenceType,
		References:      []string{req.ReferenceID},
		Written:         result.Written,
		Rows:            req.Rows,
	})
	writeJSON(w, http.StatusOK, result)
}

// validateInput is the body of POST /v1/values/validate.
type validateInput struct {
	Rows []model.Row `json:"rows"`
}

// handleValidate handles POST /v1/values/validate.
func (s *SpecServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	var in validateInput
	if !readJSON(w, r, &in) {
		return
	}
	if err := s.engine.Validate(in.Rows); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
