package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBodyLimit caps response bodies unless [WithBodyLimit] says otherwise.
const DefaultBodyLimit = 1 << 20 // 1MB

// ErrResponseTooLarge is reported when a body exceeds the client's limit.
// The body is never truncated and handed on.
var ErrResponseTooLarge = errors.New("response too large")

// connection pooling limits; every request goes to the same upstream host
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, at most the client's body limit.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// OK reports whether the request completed with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client wrapper for reading the upstream sensor API.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so a hung upstream cannot stall a poll tick past its fetch timeout.
// A body larger than the limit (1MB by default) fails with
// [ErrResponseTooLarge].
type Client struct {
	httpClient *http.Client
	bodyLimit  int64
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithBodyLimit sets the maximum accepted response body size in bytes.
// Non-positive values keep the default.
func WithBodyLimit(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.bodyLimit = n
		}
	}
}

// NewClient creates a new [Client] with a pooled transport.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation; a non-positive timeout leaves only the parent context.
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells a full body from an oversized one
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit+1))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if int64(len(body)) > c.bodyLimit {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("%w: body exceeds %d bytes", ErrResponseTooLarge, c.bodyLimit),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
