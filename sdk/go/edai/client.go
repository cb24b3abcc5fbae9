package edai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the EDAI server (e.g. "http://localhost:8080").
	BaseURL string

	// AdminToken is sent as a bearer token. Only case import and the
	// settings endpoints require it.
	AdminToken string

	// Actor is recorded in the audit log for adjudications this client
	// triggers. Empty uses the server default.
	Actor string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 5 minutes
	// because one adjudication makes three sequential model calls.
	Timeout time.Duration
}

// Client is an HTTP client for the EDAI API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	adminToken string
	actor      string
	client     *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("edai: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		adminToken: cfg.AdminToken,
		actor:      cfg.Actor,
		client:     httpClient,
	}, nil
}

// Adjudicate runs the pipeline for a case. A nil req uses the configured
// models. When the model provider fails the returned *Error has status 503
// and its Details hold the fallback result.
func (c *Client) Adjudicate(ctx context.Context, caseID uuid.UUID, req *AdjudicateRequest) (*AdjudicateResponse, error) {
	var body any
	if req != nil {
		body = req
	}
	var resp AdjudicateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/cases/"+caseID.String()+"/verdict", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCase returns one case.
func (c *Client) GetCase(ctx context.Context, caseID uuid.UUID) (*Case, error) {
	var resp Case
	if err := c.do(ctx, http.MethodGet, "/v1/cases/"+caseID.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCases returns the most recent cases. limit <= 0 uses the server default.
func (c *Client) ListCases(ctx context.Context, limit int) ([]Case, error) {
	path := "/v1/cases"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var resp []Case
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ImportCase stores a new case. Requires AdminToken.
func (c *Client) ImportCase(ctx context.Context, kase Case) (*Case, error) {
	var resp Case
	if err := c.do(ctx, http.MethodPost, "/v1/cases", kase, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verdicts returns a case's verdict history.
func (c *Client) Verdicts(ctx context.Context, caseID uuid.UUID) (*History, error) {
	var resp History
	if err := c.do(ctx, http.MethodGet, "/v1/cases/"+caseID.String()+"/verdicts", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuditTrail returns a case's audit entries, oldest first.
func (c *Client) AuditTrail(ctx context.Context, caseID uuid.UUID) ([]AuditEntry, error) {
	var resp []AuditEntry
	if err := c.do(ctx, http.MethodGet, "/v1/cases/"+caseID.String()+"/audit", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSettings returns the stored provider configuration with the key
// redacted. An unset configuration comes back as the zero value.
func (c *Client) GetSettings(ctx context.Context) (*ProviderConfig, error) {
	var resp ProviderConfig
	if err := c.do(ctx, http.MethodGet, "/v1/admin/settings", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutSettings replaces the stored provider configuration. Provider and
// APIKey are required.
func (c *Client) PutSettings(ctx context.Context, cfg ProviderConfig) (*ProviderConfig, error) {
	var resp ProviderConfig
	if err := c.do(ctx, http.MethodPut, "/v1/admin/settings", cfg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("edai: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("edai: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	if c.actor != "" {
		req.Header.Set("X-EDAI-Actor", c.actor)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("edai: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("edai: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("edai: decode response envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		if statusCode == http.StatusServiceUnavailable && len(envelope.Error.Details) > 0 {
			var details AdjudicateResponse
			if json.Unmarshal(envelope.Error.Details, &details) == nil {
				apiErr.Details = &details
			}
		}
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
