// Package remote downloads narrative tables over HTTP.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client fetches files with optional Bearer auth and retries.
type Client struct {
	token      string
	backoff    time.Duration
	httpClient *http.Client
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds a single request, body included. Default: 5m.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		backoff:    time.Second,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const maxRetries = 3

// IsURL reports whether path should be fetched rather than opened.
func IsURL(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Fetch GETs url and returns the body. It retries on 429, honouring
// Retry-After, and on 5xx, up to 3 times.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr *StatusError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.delay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		se := &StatusError{StatusCode: resp.StatusCode, Body: msg}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			se.retryAfter = resp.Header.Get("Retry-After")
			lastErr = se
		case resp.StatusCode >= 500:
			lastErr = se
		default:
			return nil, se
		}
	}
	return nil, lastErr
}

func (c *Client) delay(attempt int, lastErr *StatusError) time.Duration {
	if lastErr != nil && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.backoff << (attempt - 1)
}
