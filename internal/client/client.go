// Package client provides an HTTP client for the metrics feed API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"metrics-feed/internal/domain"
)

// DefaultTimeout bounds a single history request.
const DefaultTimeout = 10 * time.Second

// Client fetches metric history from a feed server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// New creates a feed API client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is a non-2xx response from the feed server.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("metrics request failed: status %d", e.StatusCode)
}

// RangeWindow bounds the series carried by a history response.
type RangeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// History is the history response envelope.
type History struct {
	Data      []domain.MetricPoint `json:"data"`
	Summary   domain.Summary       `json:"summary"`
	TimeRange RangeWindow          `json:"timeRange"`
}

// FetchHistory retrieves the metric series for a time range. Network
// failures come back wrapped; non-200 responses come back as *HTTPError.
func (c *Client) FetchHistory(ctx context.Context, tr domain.TimeRange) (*History, error) {
	u := fmt.Sprintf("%s/metrics?timeRange=%s", c.baseURL, url.QueryEscape(string(tr)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read metrics response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var history History
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("decode metrics response: %w", err)
	}
	return &history, nil
}
