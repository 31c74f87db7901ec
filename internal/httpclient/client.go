// Package httpclient provides the HTTP probe used to check for well known
// files in upstream repositories without cloning them.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "font-sources/1.0"
)

// Client is an interface for HTTP operations
type Client interface {
	// Head performs an HTTP HEAD request. Any status code is a successful
	// response; only transport failures are returned as errors.
	Head(ctx context.Context, url string) (*Response, error)
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client    *http.Client
	timeout   time.Duration
	authToken string
	now       func() time.Time
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithAuthToken sends the token as a GitHub 'token' Authorization header
func WithAuthToken(token string) Option {
	return func(c *DefaultClient) {
		c.authToken = strings.TrimSpace(token)
	}
}

// NewDefaultClient creates a new default HTTP client with the specified timeout
// If timeout is 0, uses DefaultTimeout
func NewDefaultClient(timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Head performs an HTTP HEAD request
func (c *DefaultClient) Head(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "token "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	retryAfter, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	return &Response{
		StatusCode:    resp.StatusCode,
		RetryAfter:    retryAfter,
		HasRetryAfter: ok,
	}, nil
}

// ParseRetryAfter parses a Retry-After header value, either delta-seconds or
// an HTTP-date relative to now. A date in the past is a zero wait. ok is false
// when the value is empty or invalid.
func ParseRetryAfter(value string, now time.Time) (d time.Duration, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
