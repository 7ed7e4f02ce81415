package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// upstream simulation control paths
const (
	startPath   = "/api/sensors/start-generation"
	stopPath    = "/api/sensors/stop-generation"
	cleanupPath = "/api/sensors/cleanup"
	resetPath   = "/api/sensors/reset-sensors"
)

const defaultControlRetryDelay = 500 * time.Millisecond

// Controller triggers the upstream simulation's side-effecting control
// endpoints. These are fire-and-forget GETs; only the status code matters.
//
// Transport failures and 5xx responses are retried up to attempts times.
// 4xx responses fail immediately.
type Controller struct {
	baseURL  string
	headers  map[string]string
	timeout  time.Duration
	attempts uint
	delay    time.Duration
	client   *Client
}

// NewController creates a [Controller] for the API rooted at baseURL.
// attempts below 1 is treated as 1.
func NewController(baseURL string, headers map[string]string, timeout time.Duration, attempts uint) *Controller {
	if attempts < 1 {
		attempts = 1
	}
	return &Controller{
		baseURL:  strings.TrimRight(baseURL, "/"),
		headers:  headers,
		timeout:  timeout,
		attempts: attempts,
		delay:    defaultControlRetryDelay,
		client:   NewClient(),
	}
}

// Start asks the upstream to begin generating sensor data.
func (c *Controller) Start(ctx context.Context) error {
	return c.trigger(ctx, startPath)
}

// Stop asks the upstream to stop generating sensor data.
func (c *Controller) Stop(ctx context.Context) error {
	return c.trigger(ctx, stopPath)
}

// Reset clears the upstream database and then resets every sensor.
// The reset step is not attempted if cleanup fails.
func (c *Controller) Reset(ctx context.Context) error {
	if err := c.trigger(ctx, cleanupPath); err != nil {
		return err
	}
	return c.trigger(ctx, resetPath)
}

// Close releases idle upstream connections.
func (c *Controller) Close() {
	c.client.Close()
}

func (c *Controller) trigger(ctx context.Context, path string) error {
	err := retry.Do(
		func() error {
			resp := c.client.Fetch(ctx, http.MethodGet, c.baseURL+path, c.headers, c.timeout)
			if resp.Error != nil {
				return resp.Error
			}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(fmt.Errorf("unexpected status %d", resp.StatusCode))
			}
			if !resp.OK() {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("control %s: %w", path, err)
	}
	return nil
}
