// Package transport provides a retrying HTTP round-tripper shared by the
// oracle backends: exponential backoff, Retry-After awareness, and safe
// request-body replay across attempts.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBackoffMs  = 500
)

// Client wraps an *http.Client with retry/backoff around Do.
type Client struct {
	HTTPClient  *http.Client
	MaxRetries  int
	BaseBackoff time.Duration
	Logger      *zap.Logger
}

// NewClient builds a retrying client, filling in defaults for zero values.
func NewClient(httpClient *http.Client, maxRetries int, baseBackoff time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = time.Duration(defaultBackoffMs) * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{HTTPClient: httpClient, MaxRetries: maxRetries, BaseBackoff: baseBackoff, Logger: logger}
}

// Do executes req, retrying on transport errors, 429, and 5xx responses,
// honoring a Retry-After header when present.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("oracle transport: read request body: %w", err)
		}
		_ = req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	ctx := req.Context()
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("oracle transport: request canceled: %w", err)
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("oracle transport: reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.HTTPClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		attemptNum := attempt + 1
		if err != nil {
			c.Logger.Warn("retrying oracle request after transport error",
				zap.Int("attempt", attemptNum), zap.Int("max_attempts", c.MaxRetries), zap.Error(err))
		} else if resp != nil {
			c.Logger.Warn("retrying oracle request after response status",
				zap.Int("attempt", attemptNum), zap.Int("max_attempts", c.MaxRetries), zap.Int("status", resp.StatusCode))
			_ = resp.Body.Close()
		}

		if attempt == c.MaxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("oracle transport: request failed after %d attempts: %w", c.MaxRetries, err)
			}
			if resp != nil {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("oracle transport: request failed after %d attempts: status %d", c.MaxRetries, resp.StatusCode)
			}
			return nil, fmt.Errorf("oracle transport: request failed after %d attempts", c.MaxRetries)
		}

		backoff := c.BaseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("oracle transport: request failed after %d attempts", c.MaxRetries)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("oracle transport: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
