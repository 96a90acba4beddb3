// Package transport provides the JSON REST client the chain and market
// ports are built on: bounded timeouts, capped retries with exponential
// backoff, and no retries on client errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultRetryCount    = 2
	defaultRetryInterval = 500 * time.Millisecond
	maxResponseBytes     = 4 << 20
)

// Client is a JSON-over-HTTP client. The zero value is not usable; use
// NewClient.
type Client struct {
	httpClient    *http.Client
	retryCount    int
	retryInterval time.Duration
	headers       map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets the retry count for non-4xx failures.
func WithRetries(n int) Option {
	return func(c *Client) { c.retryCount = n }
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient returns a Client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		retryCount:    defaultRetryCount,
		retryInterval: defaultRetryInterval,
		headers:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses. Callers can inspect the
// code; 4xx responses are never retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsClientError reports whether the response was a 4xx.
func (e *StatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON marshals in as the request body and decodes the response into
// out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, url, body, out)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out interface{}) error {
	return c.withRetries(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		respBody, err := c.roundTrip(req)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

// withRetries runs fn up to retryCount+1 times with exponential backoff.
// Client errors and context cancellation end the loop immediately.
func (c *Client) withRetries(ctx context.Context, fn func() error) error {
	attempts := c.retryCount + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if se, ok := lastErr.(*StatusError); ok && se.IsClientError() {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		backoff := c.retryInterval * time.Duration(1<<uint(attempt))
		common.Logger.WithField("attempt", attempt+1).Debugf("request failed, retrying in %s: %v", backoff, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
