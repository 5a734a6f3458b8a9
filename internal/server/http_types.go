package server

import (
	"net/http"

	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/model"
)

// handleListTypes handles GET /v1/types.
func (s *SpecServer) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.engine.ListRecordTypes(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if types == nil {
		types = []*model.RecordType{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

// handleGetType handles GET /v1/types/{type}.
func (s *SpecServer) handleGetType(w http.ResponseWriter, r *http.Request) {
	rt, err := s.engine.GetRecordType(r.Context(), r.PathValue("type"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// handlePutType handles PUT /v1/types/{type}.
func (s *SpecServer) handlePutType(w http.ResponseWriter, r *http.Request) {
	var rt model.RecordType
	if !readJSON(w, r, &rt) {
		return
	}
	rt.Name = r.PathValue("type")

	if err := s.engine.PutRecordType(r.Context(), &rt); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicTypeUpdated, events.TypeUpdated{RecordType: &rt})
	writeJSON(w, http.StatusOK, &rt)
}

// handleResolveFields handles GET /v1/types/{type}/fields.
func (s *SpecServer) handleResolveFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.engine.ResolveFields(r.Context(), r.PathValue("type"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// handlePutRecord handles PUT /v1/records/{type}/{id}.
func (s *SpecServer) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	var rec model.Record
	if !readJSON(w, r, &rec) {
		return
	}
	rec.Type = r.PathValue("type")
	rec.ID = r.PathValue("id")

	if err := s.engine.PutRecord(r.Context(), &rec); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordUpdated, events.RecordUpdated{Record: &rec})
	writeJSON(w, http.StatusOK, &rec)
}

// handleGetRecord handles GET /v1/records/{type}/{id}.
func (s *SpecServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.GetRecord(r.Context(), r.PathValue("type"), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord handles DELETE /v1/records/{type}/{id}.
func (s *SpecServer) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordType, id := r.PathValue("type"), r.PathValue("id")
	if err := s.engine.DeleteRecord(r.Context(), recordType, id); err != nil {
		writeEngineError(w, err)
		return
	}
	s.publish(r.Context(), events.TopicRecordDeleted, events.RecordDeleted{Type: recordType, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// handleFacets handles GET /v1/types/{type}/facets.
func (s *SpecServer) handleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := s.engine.Facets(r.Context(), r.PathValue("type"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facets": facets})
}

// SearchRequest is the body of POST /v1/types/{type}/search.
type SearchRequest struct {
	Filters []model.FacetFilter `json:"filters"`
}

// handleFilterRecords handles POST /v1/types/{type}/search.
func (s *SpecServer) handleFilterRecords(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !readJSON(w, r, &req) {
		return
	}
	ids, err := s.engine.FilterRecords(r.Context(), r.PathValue("type"), req.Filters)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"references": ids})
}
