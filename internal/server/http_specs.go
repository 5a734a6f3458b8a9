package server

import (
	"net/http"

	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/model"
)

// handleCreateSpecification handles POST /v1/specifications.
func (s *SpecServer) handleCreateSpecification(w http.ResponseWriter, r *http.Request) {
	var spec model.Specification
	if !readJSON(w, r, &spec) {
		return
	}

	if err := s.engine.CreateSpecification(r.Context(), &spec); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicSpecificationCreated, events.SpecificationCreated{Specification: &spec})
	writeJSON(w, http.StatusCreated, &spec)
}

// handleListSpecifications handles GET /v1/specifications.
func (s *SpecServer) handleListSpecifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SpecificationFilter{
		AppliesToType:  q.Get("type"),
		AppliesToScope: q.Get("scope"),
	}

	specs, err := s.engine.ListSpecifications(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if specs == nil {
		specs = []*model.Specification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"specifications": specs})
}

// handleGetSpecification handles GET /v1/specifications/{id}.
func (s *SpecServer) handleGetSpecification(w http.ResponseWriter, r *http.Request) {
	spec, err := s.engine.GetSpecification(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// handleUpdateSpecification handles PUT /v1/specifications/{id}.
func (s *SpecServer) handleUpdateSpecification(w http.ResponseWriter, r *http.Request) {
	var spec model.Specification
	if !readJSON(w, r, &spec) {
		return
	}
	spec.ID = r.PathValue("id")

	if err := s.engine.UpdateSpecification(r.Context(), &spec); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicSpecificationUpdated, events.SpecificationUpdated{Specification: &spec})
	writeJSON(w, http.StatusOK, &spec)
}

// handleDeleteSpecification handles DELETE /v1/specifications/{id}.
func (s *SpecServer) handleDeleteSpecification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.DeleteSpecification(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicSpecificationDeleted, events.SpecificationDeleted{SpecificationID: id})
	w.WriteHeader(http.StatusNoContent)
}

// generateInput is the body of POST /v1/specifications/{id}/generate.
type generateInput struct {
	Rows []model.Row `json:"rows"`
}

// handleGenerate handles POST /v1/specifications/{id}/generate.
func (s *SpecServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in generateInput
	if !readJSON(w, r, &in) {
		return
	}
	id := r.PathValue("id")

	result, err := s.engine.Generate(r.Context(), id, in.Rows)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	spec, err := s.engine.GetSpecification(r.Context(), id)
	if err == nil {
		s.publish(r.Context(), events.TopicValuesApplied, events.ValuesApplied{
			SpecificationID: id,
			ReferenceType:   spec.AppliesToType,
			References:      result.References,
			Written:         result.Written,
			Rows:            in.Rows,
		})
	}
	if result.References == nil {
		result.References = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}
