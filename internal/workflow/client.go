// Package workflow calls the external automation workflow that performs
// property analysis and search. Payloads are forwarded verbatim; the only
// check is that the response is JSON.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/property-listings/internal/config"
)

const maxResponseSize = 8 << 20

var (
	ErrNotConfigured = errors.New("workflow endpoint is not configured")
	ErrUpstream      = errors.New("workflow request failed")
)

// Analyzer is what the handlers need from the workflow.
type Analyzer interface {
	Analyze(ctx context.Context, address string) (json.RawMessage, error)
	Search(ctx context.Context, req SearchRequest) (json.RawMessage, error)
}

// SearchRequest carries the optional property search filters.
type SearchRequest struct {
	Location     string   `json:"location" validate:"required,max=200"`
	MinPrice     *float64 `json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice     *float64 `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	MinBedrooms  *int     `json:"min_bedrooms,omitempty" validate:"omitempty,gte=0"`
	MinBathrooms *float64 `json:"min_bathrooms,omitempty" validate:"omitempty,gte=0"`
	PropertyType string   `json:"property_type,omitempty" validate:"max=50"`
	Limit        int      `json:"limit,omitempty" validate:"omitempty,gte=1,lte=50"`
}

// Client talks to the workflow webhooks over HTTP.
type Client struct {
	cfg        config.WorkflowConfig
	httpClient *http.Client
}

func NewClient(cfg config.WorkflowConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// Analyze submits a free-text address and returns the workflow's report.
func (c *Client) Analyze(ctx context.Context, address string) (json.RawMessage, error) {
	return c.post(ctx, c.cfg.AnalyzeURL, map[string]string{"address": strings.TrimSpace(address)})
}

// Search forwards a property search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	return c.post(ctx, c.cfg.SearchURL, req)
}

func (c *Client) post(ctx context.Context, url string, payload any) (json.RawMessage, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrUpstream)
	}
	return json.RawMessage(data), nil
}
