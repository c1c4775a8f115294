// internal/models/httpclient.go
package models

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Common HTTP errors that should trigger retry
var (
	ErrRateLimit      = errors.New("rate limit exceeded (429)")
	ErrServerBusy     = errors.New("server busy (503)")
	ErrBadGateway     = errors.New("bad gateway (502)")
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Doer is satisfied by *http.Client and *RetryableClient
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryableClient wraps http.Client with retry logic
type RetryableClient struct {
	client *http.Client
	config RetryConfig
}

// NewRetryableClient creates a client with retry support. The client has
// no overall timeout; streams are bounded by the request context.
func NewRetryableClient(config RetryConfig) *RetryableClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryableClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   6,
			},
		},
		config: config,
	}
}

// NewRetryableClientWith wraps an existing client, mainly for tests
func NewRetryableClientWith(client *http.Client, config RetryConfig) *RetryableClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryableClient{client: client, config: config}
}

// Do implements Doer using the request's own context
func (c *RetryableClient) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithRetry(req.Context(), req)
}

// DoWithRetry executes a request with retry logic for transient errors.
// When every attempt hits a retryable status, the last response is returned
// as is so the caller can surface the upstream status and body.
func (c *RetryableClient) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := c.config.BaseDelay

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		final := attempt == c.config.MaxAttempts-1

		reqClone := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind body: %w", err)
			}
			reqClone.Body = body
		}

		resp, err := c.client.Do(reqClone)
		if err != nil {
			if !isRetryableError(err) {
				return nil, err
			}
			lastErr = err
			if final {
				break
			}
			if err := c.wait(ctx, &delay); err != nil {
				return nil, err
			}
			continue
		}

		if shouldRetryStatus(resp.StatusCode) && !final {
			resp.Body.Close()
			lastErr = statusError(resp.StatusCode)
			if err := c.wait(ctx, &delay); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("after %d attempts: %w", c.config.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("request failed after %d attempts", c.config.MaxAttempts)
}

func (c *RetryableClient) wait(ctx context.Context, delay *time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(*delay):
		*delay = min(*delay*2, c.config.MaxDelay)
		return nil
	}
}

// isRetryableError checks if a network error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors - don't retry
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Timeouts - retry
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Refused or reset connections - retry
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// DNS errors - retry only when the resolver says so
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	return false
}

// shouldRetryStatus checks if an HTTP status code warrants a retry
func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// statusError returns a descriptive error for HTTP status
func statusError(code int) error {
	switch code {
	case 429:
		return ErrRateLimit
	case 502:
		return ErrBadGateway
	case 503:
		return ErrServerBusy
	case 504:
		return ErrGatewayTimeout
	default:
		return fmt.Errorf("HTTP %d", code)
	}
}

// NewRequestWithBody creates a new HTTP request with the given body bytes
// The body is stored so it can be re-read on retry
func NewRequestWithBody(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(body))
	return req, nil
}

// isTimeout reports whether err came from a deadline or network timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
