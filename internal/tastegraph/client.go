// Package tastegraph talks to the external taste-graph API: free-text entity
// search and the insights (recommendation) endpoint.
package tastegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/group-harmony/internal/metrics"
	"github.com/jonathan/group-harmony/internal/types"
)

// Defaults for Options.
const (
	DefaultBaseURL         = "https://hackathon.api.qloo.com"
	DefaultSearchTimeout   = 5 * time.Second
	DefaultInsightsTimeout = 8 * time.Second
	maxResponseBytes       = 2 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	SearchTimeout   time.Duration
	InsightsTimeout time.Duration
	// InsightsMethod is http.MethodGet (query parameters) or http.MethodPost (JSON body).
	InsightsMethod string
	HTTPClient     *http.Client
}

// Error is returned for non-2xx responses and transport failures.
type Error struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("taste graph %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("taste graph %s: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("taste graph %s: %s", e.Endpoint, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client is an HTTP client for the taste-graph API. It is safe for concurrent use.
type Client struct {
	baseURL         string
	apiKey          string
	searchTimeout   time.Duration
	insightsTimeout time.Duration
	insightsMethod  string
	http            *http.Client
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.InsightsTimeout <= 0 {
		opts.InsightsTimeout = DefaultInsightsTimeout
	}
	if opts.InsightsMethod != http.MethodPost {
		opts.InsightsMethod = http.MethodGet
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		searchTimeout:   opts.SearchTimeout,
		insightsTimeout: opts.InsightsTimeout,
		insightsMethod:  opts.InsightsMethod,
		http:            opts.HTTPClient,
	}
}

// Search runs a free-text entity search and returns the decoded response body.
// The body shape varies between API versions; see ExtractEntityID.
func (c *Client) Search(ctx context.Context, query string, category types.Category) (map[string]any, error) {
	params := url.Values{}
	params.Set("query", query)
	if et := category.EntityType(); et != "" {
		params.Set("types", et)
	}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Endpoint: "search", Message: "failed to create request", Cause: err}
	}

	var body map[string]any
	if err := c.do(req, metrics.ServiceSearch, "search", &body); err != nil {
		return nil, err
	}
	return body, nil
}

// Insights queries the insights endpoint and returns the ranked candidates.
func (c *Client) Insights(ctx context.Context, q InsightsQuery) ([]types.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.insightsTimeout)
	defer cancel()

	var (
		req *http.Request
		err error
	)
	if c.insightsMethod == http.MethodPost {
		payload, merr := json.Marshal(q.Body())
		if merr != nil {
			return nil, &Error{Endpoint: "insights", Message: "failed to encode body", Cause: merr}
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/insights", bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/insights?"+q.Values().Encode(), nil)
	}
	if err != nil {
		return nil, &Error{Endpoint: "insights", Message: "failed to create request", Cause: err}
	}

	var body struct {
		Results json.RawMessage `json:"results"`
	}
	if err := c.do(req, metrics.ServiceInsights, "insights", &body); err != nil {
		return nil, err
	}
	return decodeCandidates(body.Results)
}

// do executes req, records metrics and decodes a JSON body into out.
func (c *Client) do(req *http.Request, service, endpoint string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveUpstream(service, outcome, started)
		return &Error{Endpoint: endpoint, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveUpstream(service, metrics.OutcomeError, started)
		return &Error{Endpoint: endpoint, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveUpstream(service, metrics.OutcomeError, started)
		return &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: truncate(string(data), 200)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		metrics.ObserveUpstream(service, metrics.OutcomeError, started)
		return &Error{Endpoint: endpoint, Message: "invalid JSON response", Cause: err}
	}

	metrics.ObserveUpstream(service, metrics.OutcomeSuccess, started)
	return nil
}

// decodeCandidates accepts either a bare array or an object with an entities array.
func decodeCandidates(raw json.RawMessage) ([]types.Candidate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []types.Candidate{}, nil
	}

	var list []types.Candidate
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, &Error{Endpoint: "insights", Message: "unexpected results array", Cause: err}
		}
		return list, nil
	}

	var wrapped struct {
		Entities []types.Candidate `json:"entities"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &Error{Endpoint: "insights", Message: "unexpected results object", Cause: err}
	}
	if wrapped.Entities == nil {
		return []types.Candidate{}, nil
	}
	return wrapped.Entities, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
