package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/server"
	"github.com/muurk/vesclink/internal/telemetry"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// maxBodySize bounds JSON responses
	maxBodySize = 1 << 20
)

// Client reads snapshots from a running observer server.
type Client struct {
	// BaseURL is the server root (e.g., "http://192.168.1.20:8470")
	BaseURL string

	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration
}

// NewClient creates a client for the server at host:port.
func NewClient(host string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Ping checks that the server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.withRetry(ctx, func() error {
		_, err := c.get(ctx, "/healthz")
		return err
	})
}

// GetStatus fetches the link status.
func (c *Client) GetStatus(ctx context.Context) (*server.Status, error) {
	var status server.Status
	if err := c.getJSON(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetRealtime fetches the latest realtime snapshot.
func (c *Client) GetRealtime(ctx context.Context) (*telemetry.Realtime, error) {
	var rt telemetry.Realtime
	if err := c.getJSON(ctx, "/api/realtime", &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

// GetStats fetches the latest ride statistics.
func (c *Client) GetStats(ctx context.Context) (*telemetry.Stats, error) {
	var st telemetry.Stats
	if err := c.getJSON(ctx, "/api/stats", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	return c.withRetry(ctx, func() error {
		body, err := c.get(ctx, path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, v); err != nil {
			return newParseError("failed to parse "+path, err)
		}
		return nil
	})
}

// withRetry runs attempt until it succeeds, fails with a non-retryable
// error, or MaxRetries retries have been spent. The delay doubles after
// every retry up to MaxRetryDelay.
func (c *Client) withRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			logging.Debug("Retrying server request",
				zap.String("url", c.BaseURL),
				zap.Int("attempt", i),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return classifyNetworkError("request cancelled", ctx.Err())
			case <-time.After(delay):
			}
			delay = min(delay*2, c.MaxRetryDelay)
		}

		lastErr = attempt()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// get performs a single GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyNetworkError("GET "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp.StatusCode, fmt.Sprintf("GET %s returned %d", path, resp.StatusCode))
	}
	return body, nil
}
