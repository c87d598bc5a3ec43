// Package transport provides the client-side adapters to the assistant
// backend: a JSON request/response client and a push channel.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// APIError is returned when the backend responds with a non-2xx status.
type APIError struct {
	Status     int
	StatusText string
	Message    string
	Payload    map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// IsAPIError reports whether err carries an API error with the given status.
// A status of 0 matches any API error.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return status == 0 || apiErr.Status == status
}

// Client is a stateless JSON client for the assistant HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client rooted at baseURL. An empty baseURL issues
// same-origin relative requests, which only makes sense behind a proxy.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues one request and decodes a JSON response into out when out is
// non-nil. No retry is performed.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", "path", path, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		apiErr.Payload = payload
		for _, key := range []string{"message", "error"} {
			if msg, ok := payload[key].(string); ok && msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d %s", apiErr.Status, apiErr.StatusText)
	}
	return apiErr
}
