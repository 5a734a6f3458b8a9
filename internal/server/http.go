package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *SpecServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/types", s.handleListTypes)
	mux.HandleFunc("GET /v1/types/{type}", s.handleGetType)
	mux.HandleFunc("PUT /v1/types/{type}", s.handlePutType)
	mux.HandleFunc("GET /v1/types/{type}/fields", s.handleResolveFields)
	mux.HandleFunc("GET /v1/types/{type}/facets", s.handleFacets)
	mux.HandleFunc("POST /v1/types/{type}/search", s.handleFilterRecords)
	mux.HandleFunc("PUT /v1/records/{type}/{id}", s.handlePutRecord)
	mux.HandleFunc("GET /v1/records/{type}/{id}", s.handleGetRecord)
	mux.HandleFunc("DELETE /v1/records/{type}/{id}", s.handleDeleteRecord)
	mux.HandleFunc("POST /v1/specifications", s.handleCreateSpecification)
	mux.HandleFunc("GET /v1/specifications", s.handleListSpecifications)
	mux.HandleFunc("GET /v1/specifications/{id}", s.handleGetSpecification)
	mux.HandleFunc("PUT /v1/specifications/{id}", s.handleUpdateSpecification)
	mux.HandleFunc("DELETE /v1/specifications/{id}", s.handleDeleteSpecification)
	mux.HandleFunc("POST /v1/specifications/{id}/generate", s.handleGenerate)
	mux.HandleFunc("POST /v1/attributes", s.handleListAttributes)
	mux.HandleFunc("POST /v1/values/validate", s.handleValidate)
	mux.HandleFunc("GET /v1/values/{type}/{id}", s.handleResolve)
	mux.HandleFunc("PUT /v1/values/{type}/{id}", s.handleApply)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *SpecServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readJSON decodes the request body into v, writing a 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
