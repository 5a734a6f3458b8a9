package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
	"github.com/alfredjeanlab/specs/internal/store/sqlite"
)

// recordingPublisher captures published topics for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type testEnv struct {
	srv     *SpecServer
	store   store.Store
	pub     *recordingPublisher
	handler http.Handler
}

// newTestServer returns a server over a fresh in-memory store.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	s, err := sqlite.New(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &recordingPublisher{}
	srv := NewSpecServer(engine.New(s, logger), pub, logger)
	return &testEnv{srv: srv, store: s, pub: pub, handler: srv.NewHTTPHandler("")}
}

// seed stores two Item records and the "Items" template through the API.
func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	requireStatus(t, doJSON(t, env.handler, "PUT", "/v1/records/Item/plum-pie", map[string]any{
		"fields": map[string]any{"color": "Purple", "size": "Medium"},
	}), http.StatusOK)
	requireStatus(t, doJSON(t, env.handler, "PUT", "/v1/records/Item/apple-tart", map[string]any{
		"fields": map[string]any{"color": "Green"},
	}), http.StatusOK)
	requireStatus(t, doJSON(t, env.handler, "POST", "/v1/specifications", map[string]any{
		"id":              "Items",
		"applies_to_type": "Item",
		"attributes": []map[string]any{
			{"attribute_name": "Color", "bound_field": "color"},
			{"attribute_name": "Grade"},
		},
	}), http.StatusCreated)
}

// doJSON performs an HTTP request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func str(s string) *string { return &s }

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		method    string
		path      string
		body      any
		code      int
		wantError string
	}{
		{"Fields/UnknownType", "GET", "/v1/types/Widget/fields", nil, 404, `unknown record type "Widget"`},
		{"GetRecord/NotFound", "GET", "/v1/records/Item/nope", nil, 404, ""},
		{"PutRecord/UnknownType", "PUT", "/v1/records/Widget/w-1", map[string]any{}, 404, ""},
		{"GetSpecification/NotFound", "GET", "/v1/specifications/nope", nil, 404, ""},
		{"CreateSpecification/BadJSON", "POST", "/v1/specifications", "not an object", 400, "invalid JSON body"},
		{"CreateSpecification/NoType", "POST", "/v1/specifications", map[string]any{"id": "x"}, 422, ""},
		{"Resolve/MissingSpecification", "GET", "/v1/values/Item/plum-pie?specification=nope", nil, 422, ""},
		{"Resolve/MissingRecord", "GET", "/v1/values/Item/nope", nil, 422, ""},
		{"Apply/NoSpecification", "PUT", "/v1/values/Item/plum-pie", map[string]any{"rows": []any{}}, 400, "specification is required"},
		{"Validate/Duplicate", "POST", "/v1/values/validate", map[string]any{"rows": []model.Row{
			model.NewRow("Grade", "", "A"), model.NewRow("Grade", "", "B"),
		}}, 409, `duplicate attribute "Grade"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t)
			rec := doJSON(t, env.handler, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
			if tc.wantError != "" {
				var body map[string]string
				decodeJSON(t, rec, &body)
				if body["error"] != tc.wantError {
					t.Fatalf("expected error=%q, got %q", tc.wantError, body["error"])
				}
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.handler, "GET", "/v1/health", nil)
	requireStatus(t, rec, 200)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %q", body["status"])
	}
}

func TestHandleResolveFields(t *testing.T) {
	env := newTestServer(t)
	requireStatus(t, doJSON(t, env.handler, "PUT", "/v1/types/Widget", map[string]any{
		"fields": []map[string]any{
			{"name": "name", "type": "Data"},
			{"name": "shade", "type": "Color"},
			{"name": "layout", "type": "Section Break"},
			{"name": "blurb", "type": "Text"},
		},
	}), http.StatusOK)

	rec := doJSON(t, env.handler, "GET", "/v1/types/Widget/fields", nil)
	requireStatus(t, rec, http.StatusOK)
	var body struct {
		Fields []string `json:"fields"`
	}
	decodeJSON(t, rec, &body)
	if diff := cmp.Diff([]string{"blurb", "shade"}, body.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"specs.type.updated"}, env.pub.published()); diff != "" {
		t.Fatalf("published mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleListTypes_IncludesBuiltin(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.handler, "GET", "/v1/types", nil)
	requireStatus(t, rec, http.StatusOK)
	var body struct {
		Types []*model.RecordType `json:"types"`
	}
	decodeJSON(t, rec, &body)
	found := false
	for _, rt := range body.Types {
		if rt.Name == "Item" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected builtin Item type in %d types", len(body.Types))
	}
}

func TestHandleSpecificationCRUD(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "GET", "/v1/specifications/Items", nil)
	requireStatus(t, rec, http.StatusOK)
	var spec model.Specification
	decodeJSON(t, rec, &spec)
	if spec.Title != "Item" || len(spec.Attributes) != 2 {
		t.Fatalf("got title=%q attributes=%d", spec.Title, len(spec.Attributes))
	}

	rec = doJSON(t, env.handler, "GET", "/v1/specifications?type=Item", nil)
	requireStatus(t, rec, http.StatusOK)
	var list struct {
		Specifications []*model.Specification `json:"specifications"`
	}
	decodeJSON(t, rec, &list)
	if len(list.Specifications) != 1 {
		t.Fatalf("expected 1 specification, got %d", len(list.Specifications))
	}

	requireStatus(t, doJSON(t, env.handler, "PUT", "/v1/specifications/Items", map[string]any{
		"applies_to_type": "Item",
		"attributes":      []map[string]any{{"attribute_name": "Grade"}},
	}), http.StatusOK)
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/v1/specifications/Items", nil), http.StatusNoContent)
	requireStatus(t, doJSON(t, env.handler, "GET", "/v1/specifications/Items", nil), http.StatusNotFound)

	rec = doJSON(t, env.handler, "GET", "/v1/specifications?type=Nothing", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := rec.Body.String(); got != "{\"specifications\":[]}\n" {
		t.Fatalf("expected empty list, got %s", got)
	}
}

func TestHandleResolveAndApply(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "GET", "/v1/values/Item/plum-pie?specification=Items", nil)
	requireStatus(t, rec, http.StatusOK)
	var res model.Resolution
	decodeJSON(t, rec, &res)
	want := []model.Row{
		{Specification: "Items", Attribute: "Color", Field: "color", Value: str("Purple")},
		{Specification: "Items", Attribute: "Grade", Value: str("")},
	}
	if diff := cmp.Diff(want, res.Rows); diff != "" {
		t.Fatalf("resolve mismatch (-want +got):\n%s", diff)
	}

	rec = doJSON(t, env.handler, "PUT", "/v1/values/Item/plum-pie", map[string]any{
		"specification": "Items",
		"rows": []model.Row{
			model.NewRow("Color", "color", "Plum"),
			model.NewRow("Grade", "", "A"),
		},
	})
	requireStatus(t, rec, http.StatusOK)
	var result model.ApplyResult
	decodeJSON(t, rec, &result)
	if result.Written != 2 {
		t.Fatalf("expected 2 written, got %d", result.Written)
	}

	rec = doJSON(t, env.handler, "GET", "/v1/values/Item/plum-pie", nil)
	requireStatus(t, rec, http.StatusOK)
	res = model.Resolution{}
	decodeJSON(t, rec, &res)
	want = []model.Row{
		{Specification: "Items", Attribute: "Color", Field: "color", Value: str("Plum")},
		{Specification: "Items", Attribute: "Grade", Value: str("A")},
	}
	if diff := cmp.Diff(want, res.Rows); diff != "" {
		t.Fatalf("resolve after apply mismatch (-want +got):\n%s", diff)
	}

	topics := env.pub.published()
	if topics[len(topics)-1] != "specs.values.applied" {
		t.Fatalf("expected last topic specs.values.applied, got %v", topics)
	}
}

func TestHandleResolve_DefinitionMode(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "GET", "/v1/values/Specification/Items?specification=Items", nil)
	requireStatus(t, rec, http.StatusOK)
	var res model.Resolution
	decodeJSON(t, rec, &res)
	if res.Mode != model.ModeDefinition {
		t.Fatalf("expected definition mode, got %q", res.Mode)
	}
	for _, r := range res.Rows {
		if r.Value != nil {
			t.Fatalf("expected unresolved value for %q, got %q", r.Attribute, *r.Value)
		}
	}
}

func TestHandleApply_DuplicateConflict(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "PUT", "/v1/values/Item/plum-pie", map[string]any{
		"specification": "Items",
		"rows": []model.Row{
			model.NewRow("Grade", "", "A"),
			model.NewRow("Grade", "", "B"),
		},
	})
	requireStatus(t, rec, http.StatusConflict)

	values, err := env.store.ListValues(context.Background(), model.ValueFilter{})
	if err != nil {
		t.Fatalf("ListValues: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected no stored values, got %d", len(values))
	}
}

func TestHandleListAttributes(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "POST", "/v1/attributes", map[string]any{
		"reference_type": "Item",
		"rows": []model.Row{
			model.NewRow("Finish", "", "Matte"),
			model.NewRow("Color", "color", ""),
		},
	})
	requireStatus(t, rec, http.StatusOK)
	var body struct {
		Attributes []string `json:"attributes"`
	}
	decodeJSON(t, rec, &body)
	if diff := cmp.Diff([]string{"Finish", "Grade"}, body.Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleGenerate(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	rec := doJSON(t, env.handler, "POST", "/v1/specifications/Items/generate", map[string]any{
		"rows": []model.Row{model.NewRow("Grade", "", "B")},
	})
	requireStatus(t, rec, http.StatusOK)
	var result model.ApplyResult
	decodeJSON(t, rec, &result)
	if diff := cmp.Diff([]string{"apple-tart", "plum-pie"}, result.References); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
	if result.Written != 2 {
		t.Fatalf("expected 2 written, got %d", result.Written)
	}
}

func TestHandleDeleteRecord(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)

	requireStatus(t, doJSON(t, env.handler, "DELETE", "/v1/records/Item/apple-tart", nil), http.StatusNoContent)
	requireStatus(t, doJSON(t, env.handler, "GET", "/v1/records/Item/apple-tart", nil), http.StatusNotFound)
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/v1/records/Item/apple-tart", nil), http.StatusNotFound)
}

func TestHandleDeleteRecord_ScopedSpecification(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)
	requireStatus(t, doJSON(t, env.handler, "POST", "/v1/specifications", map[string]any{
		"id":               "Tart",
		"applies_to_type":  "Item",
		"applies_to_scope": "apple-tart",
		"attributes":       []map[string]any{{"attribute_name": "Crust"}},
	}), http.StatusCreated)

	requireStatus(t, doJSON(t, env.handler, "DELETE", "/v1/records/Item/apple-tart", nil), http.StatusUnprocessableEntity)
	requireStatus(t, doJSON(t, env.handler, "GET", "/v1/records/Item/apple-tart", nil), http.StatusOK)
}

func TestHandleFacetsAndSearch(t *testing.T) {
	env := newTestServer(t)
	env.seed(t)
	requireStatus(t, doJSON(t, env.handler, "PUT", "/v1/values/Item/apple-tart", map[string]any{
		"specification": "Items",
		"rows":          []model.Row{model.NewRow("Grade", "", "B")},
	}), http.StatusOK)

	rec := doJSON(t, env.handler, "GET", "/v1/types/Item/facets", nil)
	requireStatus(t, rec, http.StatusOK)
	var facets struct {
		Facets []model.Facet `json:"facets"`
	}
	decodeJSON(t, rec, &facets)
	want := []model.Facet{
		{Attribute: "Color", Field: "color", Kind: model.FacetValues, Values: []string{"Green", "Purple"}},
		{Attribute: "Grade", Kind: model.FacetValues, Values: []string{"B"}},
	}
	if diff := cmp.Diff(want, facets.Facets); diff != "" {
		t.Fatalf("facets mismatch (-want +got):\n%s", diff)
	}

	rec = doJSON(t, env.handler, "POST", "/v1/types/Item/search", SearchRequest{Filters: []model.FacetFilter{
		{Attribute: "Color", Values: []string{"Purple"}},
		{Attribute: "Grade", Values: []string{"B"}},
	}})
	requireStatus(t, rec, http.StatusOK)
	var found struct {
		References []string `json:"references"`
	}
	decodeJSON(t, rec, &found)
	if diff := cmp.Diff([]string{"apple-tart", "plum-pie"}, found.References); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	rec = doJSON(t, env.handler, "POST", "/v1/types/Item/search", SearchRequest{Filters: []model.FacetFilter{
		{Attribute: "Flavor", Values: []string{"Sweet"}},
	}})
	requireStatus(t, rec, http.StatusUnprocessableEntity)
	requireStatus(t, doJSON(t, env.handler, "GET", "/v1/types/Gadget/facets", nil), http.StatusNotFound)
}

func TestHandleAuth(t *testing.T) {
	env := newTestServer(t)
	h := env.srv.NewHTTPHandler("secret")

	requireStatus(t, doJSON(t, h, "GET", "/v1/health", nil), http.StatusOK)
	requireStatus(t, doJSON(t, h, "GET", "/v1/types", nil), http.StatusUnauthorized)

	req := httptest.NewRequest("GET", "/v1/types", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
}
