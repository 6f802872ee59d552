package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/metrics"
)

// Response is the result of a successful (2xx) provider call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues provider requests with rate-limit-aware retries.
type Client struct {
	hc     *http.Client
	policy Policy
	log    *slog.Logger

	// sleep waits for the given duration or until the context is canceled.
	// Replaced in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a resilient client with the given retry policy.
func New(policy Policy, log *slog.Logger) *Client {
	return &Client{
		hc:     &http.Client{Timeout: 30 * time.Second},
		policy: policy,
		log:    log,
		sleep:  sleepContext,
	}
}

// Do performs the request, retrying rate-limited, server-error, and
// network-error outcomes with exponential backoff until the policy's attempt
// cap is reached. Unauthorized and other 4xx outcomes are surfaced
// immediately without retrying. The returned error wraps the matching
// sentinel from the interfaces package.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	bo := c.policy.NewBackOff()

	for attempt := 1; ; attempt++ {
		resp, retryAfter, err := c.attempt(ctx, method, url, header, body)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			c.log.Error("Retry attempts exhausted",
				slog.String("method", method),
				slog.String("url", url),
				slog.Int("attempts", attempt),
				"err", err)
			return nil, err
		}
		if retryAfter > delay {
			delay = retryAfter
		}

		c.log.Warn("Retrying provider request",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			"err", err)
		metrics.RetryWaits.Inc()

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt performs one HTTP exchange and classifies the outcome. The second
// return value carries the provider's Retry-After hint for rate-limited
// responses.
func (c *Client) attempt(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("network_error").Inc()
		return nil, 0, fmt.Errorf("%w: %v", interfaces.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("network_error").Inc()
		return nil, 0, fmt.Errorf("%w: reading response body: %v", interfaces.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.ProviderRequests.WithLabelValues("ok").Inc()
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ProviderRequests.WithLabelValues("rate_limited").Inc()
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("%w: status %d", interfaces.ErrRateLimited, resp.StatusCode)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.ProviderRequests.WithLabelValues("unauthorized").Inc()
		return nil, 0, fmt.Errorf("%w: status %d", interfaces.ErrUnauthorized, resp.StatusCode)

	case resp.StatusCode >= 500:
		metrics.ProviderRequests.WithLabelValues("server_error").Inc()
		return nil, 0, fmt.Errorf("%w: status %d", interfaces.ErrServer, resp.StatusCode)

	default:
		metrics.ProviderRequests.WithLabelValues("rejected").Inc()
		return nil, 0, fmt.Errorf("provider rejected request: status %d: %s", resp.StatusCode, truncate(data, 256))
	}
}

// isRetryable reports whether the classified error is transient.
func isRetryable(err error) bool {
	return errors.Is(err, interfaces.ErrRateLimited) ||
		errors.Is(err, interfaces.ErrServer) ||
		errors.Is(err, interfaces.ErrNetwork)
}

// parseRetryAfter interprets a Retry-After header given in seconds. HTTP-date
// values are ignored; the backoff schedule governs in that case.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(data []byte, max int) string {
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
