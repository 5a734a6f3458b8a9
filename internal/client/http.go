package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/model"
)

// HTTPClient implements SpecsClient using the specs HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Synchronization ---

func (c *HTTPClient) ResolveFields(ctx context.Context, recordType string) ([]string, error) {
	var resp struct {
		Fields []string `json:"fields"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/types/"+url.PathEscape(recordType)+"/fields", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

func (c *HTTPClient) ListAttributes(ctx context.Context, recordType string, rows []model.Row) ([]string, error) {
	body := map[string]any{"reference_type": recordType, "rows": rows}
	var resp struct {
		Attributes []string `json:"attributes"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/attributes", body, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

// Resolve resolves a record, or the definition rows of req.SpecificationID
// when no reference is given.
func (c *HTTPClient) Resolve(ctx context.Context, req *ResolveRequest) (*model.Resolution, error) {
	refType, refID := req.ReferenceType, req.ReferenceID
	if refID == "" && req.SpecificationID != "" {
		refType, refID = engine.DefinitionReferenceType, req.SpecificationID
	}
	path := valuesPath(refType, refID)
	if req.SpecificationID != "" {
		path += "?" + url.Values{"specification": {req.SpecificationID}}.Encode()
	}

	var res model.Resolution
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Apply(ctx context.Context, req *ApplyRequest) (*model.ApplyResult, error) {
	body := map[string]any{"specification": req.SpecificationID, "rows": req.Rows}
	var result model.ApplyResult
	if err := c.doJSON(ctx, http.MethodPut, valuesPath(req.ReferenceType, req.ReferenceID), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Validate(ctx context.Context, rows []model.Row) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/values/validate", map[string]any{"rows": rows}, nil)
}

// --- Record types ---

func (c *HTTPClient) PutRecordType(ctx context.Context, rt *model.RecordType) (*model.RecordType, error) {
	var out model.RecordType
	if err := c.doJSON(ctx, http.MethodPut, "/v1/types/"+url.PathEscape(rt.Name), rt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	var rt model.RecordType
	if err := c.doJSON(ctx, http.MethodGet, "/v1/types/"+url.PathEscape(name), nil, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (c *HTTPClient) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	var resp struct {
		Types []*model.RecordType `json:"types"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Types, nil
}

// --- Records ---

func (c *HTTPClient) PutRecord(ctx context.Context, r *model.Record) (*model.Record, error) {
	var out model.Record
	if err := c.doJSON(ctx, http.MethodPut, recordPath(r.Type, r.ID), r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	var r model.Record
	if err := c.doJSON(ctx, http.MethodGet, recordPath(recordType, id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, recordType, id string) error {
	return c.doJSON(ctx, http.MethodDelete, recordPath(recordType, id), nil, nil)
}

// --- Specifications ---

func (c *HTTPClient) CreateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error) {
	var out model.Specification
	if err := c.doJSON(ctx, http.MethodPost, "/v1/specifications", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	var spec model.Specification
	if err := c.doJSON(ctx, http.MethodGet, "/v1/specifications/"+url.PathEscape(id), nil, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (c *HTTPClient) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	q := url.Values{}
	if filter.AppliesToType != "" {
		q.Set("type", filter.AppliesToType)
	}
	if filter.AppliesToScope != "" {
		q.Set("scope", filter.AppliesToScope)
	}
	path := "/v1/specifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Specifications []*model.Specification `json:"specifications"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Specifications, nil
}

func (c *HTTPClient) UpdateSpecification(ctx context.Context, spec *model.Specification) (*model.Specification, error) {
	var out model.Specification
	if err := c.doJSON(ctx, http.MethodPut, "/v1/specifications/"+url.PathEscape(spec.ID), spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteSpecification(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/specifications/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Generate(ctx context.Context, specID string, rows []model.Row) (*model.ApplyResult, error) {
	var result model.ApplyResult
	path := "/v1/specifications/" + url.PathEscape(specID) + "/generate"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"rows": rows}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Faceted search ---

func (c *HTTPClient) Facets(ctx context.Context, recordType string) ([]model.Facet, error) {
	var resp struct {
		Facets []model.Facet `json:"facets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/types/"+url.PathEscape(recordType)+"/facets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Facets, nil
}

func (c *HTTPClient) FilterRecords(ctx context.Context, recordType string, filters []model.FacetFilter) ([]string, error) {
	var resp struct {
		References []string `json:"references"`
	}
	path := "/v1/types/" + url.PathEscape(recordType) + "/search"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"filters": filters}, &resp); err != nil {
		return nil, err
	}
	return resp.References, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func recordPath(recordType, id string) string {
	return "/v1/records/" + url.PathEscape(recordType) + "/" + url.PathEscape(id)
}

func valuesPath(recordType, id string) string {
	return "/v1/values/" + url.PathEscape(recordType) + "/" + url.PathEscape(id)
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
