package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/specs/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	requestURI  string
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.requestURI = r.RequestURI
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

func str(s string) *string { return &s }

// --- ResolveFields ---

func TestHTTPClient_ResolveFields(t *testing.T) {
	h := &testHandler{responseBody: `{"fields":["color","size"]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	fields, err := c.ResolveFields(context.Background(), "Sales Order")
	if err != nil {
		t.Fatalf("ResolveFields() error = %v", err)
	}
	if h.method != http.MethodGet {
		t.Errorf("method = %q, want GET", h.method)
	}
	if h.requestURI != "/v1/types/Sales%20Order/fields" {
		t.Errorf("requestURI = %q", h.requestURI)
	}
	if diff := cmp.Diff([]string{"color", "size"}, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

// --- ListAttributes ---

func TestHTTPClient_ListAttributes(t *testing.T) {
	h := &testHandler{responseBody: `{"attributes":["Finish","Grade"]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	names, err := c.ListAttributes(context.Background(), "Item", []model.Row{model.NewRow("Finish", "", "Matte")})
	if err != nil {
		t.Fatalf("ListAttributes() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/attributes" {
		t.Errorf("got %s %s, want POST /v1/attributes", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("Content-Type = %q", h.contentType)
	}
	var body struct {
		ReferenceType string      `json:"reference_type"`
		Rows          []model.Row `json:"rows"`
	}
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.ReferenceType != "Item" || len(body.Rows) != 1 || body.Rows[0].Attribute != "Finish" {
		t.Errorf("unexpected request body %s", h.body)
	}
	if diff := cmp.Diff([]string{"Finish", "Grade"}, names); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

// --- Resolve ---

func TestHTTPClient_Resolve(t *testing.T) {
	h := &testHandler{responseBody: `{
		"mode": "record",
		"rows": [
			{"specification": "Items", "attribute": "Color", "field": "color", "value": "Purple"},
			{"specification": "Items", "attribute": "Grade", "value": ""}
		]
	}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.Resolve(context.Background(), &ResolveRequest{
		SpecificationID: "Items",
		ReferenceType:   "Item",
		ReferenceID:     "Double Plum Pie",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.requestURI != "/v1/values/Item/Double%20Plum%20Pie?specification=Items" {
		t.Errorf("requestURI = %q", h.requestURI)
	}
	want := []model.Row{
		{Specification: "Items", Attribute: "Color", Field: "color", Value: str("Purple")},
		{Specification: "Items", Attribute: "Grade", Value: str("")},
	}
	if diff := cmp.Diff(want, res.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPClient_Resolve_Definition(t *testing.T) {
	h := &testHandler{responseBody: `{"mode":"definition","rows":[{"attribute":"Color","field":"color","value":null}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.Resolve(context.Background(), &ResolveRequest{SpecificationID: "Items"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.path != "/v1/values/Specification/Items" || h.query != "specification=Items" {
		t.Errorf("got path=%q query=%q", h.path, h.query)
	}
	if res.Mode != model.ModeDefinition || res.Rows[0].Value != nil {
		t.Errorf("unexpected resolution %+v", res)
	}
}

// --- Apply ---

func TestHTTPClient_Apply(t *testing.T) {
	h := &testHandler{responseBody: `{"written":2}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	result, err := c.Apply(context.Background(), &ApplyRequest{
		SpecificationID: "Items",
		ReferenceType:   "Item",
		ReferenceID:     "pie",
		Rows:            []model.Row{model.NewRow("Grade", "", "A")},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if h.method != http.MethodPut || h.path != "/v1/values/Item/pie" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body["specification"] != "Items" {
		t.Errorf("specification = %v", body["specification"])
	}
	if result.Written != 2 {
		t.Errorf("written = %d, want 2", result.Written)
	}
}

// --- Validate ---

func TestHTTPClient_Validate_Conflict(t *testing.T) {
	h := &testHandler{statusCode: http.StatusConflict, responseBody: `{"error":"duplicate attribute \"Grade\""}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	err := c.Validate(context.Background(), []model.Row{model.NewRow("Grade", "", "A"), model.NewRow("Grade", "", "B")})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", apiErr.StatusCode)
	}
	if apiErr.Message != `duplicate attribute "Grade"` {
		t.Errorf("message = %q", apiErr.Message)
	}
}

// --- Specifications ---

func TestHTTPClient_ListSpecifications(t *testing.T) {
	h := &testHandler{responseBody: `{"specifications":[{"id":"Items","title":"Item","applies_to_type":"Item"}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	specs, err := c.ListSpecifications(context.Background(), model.SpecificationFilter{AppliesToType: "Item", AppliesToScope: "pie"})
	if err != nil {
		t.Fatalf("ListSpecifications() error = %v", err)
	}
	if h.query != "scope=pie&type=Item" {
		t.Errorf("query = %q", h.query)
	}
	if len(specs) != 1 || specs[0].ID != "Items" {
		t.Errorf("unexpected specifications %+v", specs)
	}
}

func TestHTTPClient_DeleteSpecification_NoContent(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteSpecification(context.Background(), "Items"); err != nil {
		t.Fatalf("DeleteSpecification() error = %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/specifications/Items" {
		t.Errorf("got %s %s", h.method, h.path)
	}
}

func TestHTTPClient_Generate(t *testing.T) {
	h := &testHandler{responseBody: `{"written":3,"references":["a","b"]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	result, err := c.Generate(context.Background(), "Items", []model.Row{model.NewRow("Grade", "", "B")})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if h.path != "/v1/specifications/Items/generate" {
		t.Errorf("path = %q", h.path)
	}
	if diff := cmp.Diff([]string{"a", "b"}, result.References); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

// --- Records ---

func TestHTTPClient_Facets(t *testing.T) {
	h := &testHandler{responseBody: `{"facets":[{"attribute":"Weight","kind":"numeric","min":"4.5","max":"12"}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	facets, err := c.Facets(context.Background(), "Baked Good")
	if err != nil {
		t.Fatalf("Facets() error = %v", err)
	}
	if h.method != http.MethodGet || h.requestURI != "/v1/types/Baked%20Good/facets" {
		t.Errorf("request = %s %s", h.method, h.requestURI)
	}
	want := []model.Facet{{Attribute: "Weight", Kind: model.FacetNumeric, Min: "4.5", Max: "12"}}
	if diff := cmp.Diff(want, facets); diff != "" {
		t.Errorf("facets mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPClient_FilterRecords(t *testing.T) {
	h := &testHandler{responseBody: `{"references":["pie"]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	ids, err := c.FilterRecords(context.Background(), "Item", []model.FacetFilter{{Attribute: "Weight", Min: "10"}})
	if err != nil {
		t.Fatalf("FilterRecords() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/types/Item/search" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	var body struct {
		Filters []model.FacetFilter `json:"filters"`
	}
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Filters) != 1 || body.Filters[0].Min != "10" {
		t.Errorf("filters = %+v", body.Filters)
	}
	if diff := cmp.Diff([]string{"pie"}, ids); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPClient_GetRecord_URLEscaping(t *testing.T) {
	h := &testHandler{responseBody: `{"type":"Item","id":"a/b","fields":{"color":"Red"}}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	r, err := c.GetRecord(context.Background(), "Item", "a/b")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	// r.URL.Path is decoded by the Go HTTP server, so we check requestURI.
	if h.requestURI != "/v1/records/Item/a%2Fb" {
		t.Errorf("requestURI = %q", h.requestURI)
	}
	if r.FieldText("color") != "Red" {
		t.Errorf("color = %q", r.FieldText("color"))
	}
}

// --- Auth and errors ---

func TestHTTPClient_BearerToken(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret")
	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q", status)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", h.auth)
	}
	if h.path != "/v1/health" {
		t.Errorf("path = %q", h.path)
	}
}

func TestHTTPClient_Error_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetSpecification(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Message != "internal server error" {
		t.Errorf("message = %q, want 'internal server error'", apiErr.Message)
	}
}

func TestHTTPClient_Error_FormatString(t *testing.T) {
	apiErr := &APIError{StatusCode: 403, Message: "forbidden"}
	want := "HTTP 403: forbidden"
	if got := apiErr.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
