package fetch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solana-activity-service/service/metrics"
)

const (
	// DefaultMaxAttempts bounds the total number of tries (first call plus retries).
	DefaultMaxAttempts = 5

	defaultTimeout = 30 * time.Second
)

// Options configures the retrying HTTP client.
type Options struct {
	// MaxAttempts is the total number of attempts per request. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Timeout is the per-request timeout applied to the client. Zero means 30s.
	// Retry backoff waits count against the caller's context, not this timeout.
	Timeout time.Duration

	// Endpoint is an identifier used for metrics labeling (e.g., RPC hostname).
	Endpoint string

	// Metrics is optional; if nil, no metrics are recorded.
	Metrics *metrics.Metrics

	// Logger is optional; if nil, retries are not logged.
	Logger *slog.Logger
}

// NewClient returns an *http.Client whose transport retries rate-limited and
// unavailable responses with backoff. The underlying http.Transport keeps
// connections alive, so all requests through the client share one pool. The
// client is safe for concurrent use; backoff waits block only the calling
// goroutine.
func NewClient(opts Options) *http.Client {
	return &http.Client{
		Timeout:   timeoutOrDefault(opts.Timeout),
		Transport: NewRetryTransport(http.DefaultTransport, opts),
	}
}

// retryTransport wraps a base RoundTripper with the retry policy:
// up to maxAttempts tries, retrying only on 429, 503, or transport error.
// A 429 with a Retry-After header waits as directed; everything else waits
// 2^attempt seconds, attempt starting at 0. The last response or error is
// returned as-is once attempts are exhausted.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	endpoint    string
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// sleep waits for the given duration or until ctx is done.
	// Overridable in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryTransport wraps base with the retry policy described on NewClient.
// If base is nil, http.DefaultTransport is used.
func NewRetryTransport(base http.RoundTripper, opts Options) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &retryTransport{
		base:        base,
		maxAttempts: maxAttempts,
		endpoint:    opts.Endpoint,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		sleep:       sleepContext,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Buffer the body so the request can be replayed on retry.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	ctx := req.Context()
	var resp *http.Response
	var err error

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
		}

		resp, err = t.base.RoundTrip(attemptReq)

		reason, retryable := retryReason(resp, err)
		if !retryable || attempt == t.maxAttempts-1 {
			return resp, err
		}

		wait := t.backoff(resp, attempt)

		if t.logger != nil {
			t.logger.WarnContext(ctx, "retrying request",
				"url", req.URL.Redacted(),
				"attempt", attempt+1,
				"reason", reason,
				"wait", wait,
			)
		}
		if t.metrics != nil {
			if reason == reasonRateLimit {
				t.metrics.RecordRateLimitHit(t.endpoint)
			}
			t.metrics.RecordRPCRetry(req.Method, reason)
		}

		// The failed response will never reach the caller; release its connection.
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if sleepErr := t.sleep(ctx, wait); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return resp, err
}

const (
	reasonRateLimit   = "rate_limit"
	reasonUnavailable = "unavailable"
	reasonTransport   = "transport_error"
)

// retryReason reports whether the outcome of an attempt warrants a retry.
func retryReason(resp *http.Response, err error) (string, bool) {
	if err != nil {
		return reasonTransport, true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return reasonRateLimit, true
	case http.StatusServiceUnavailable:
		return reasonUnavailable, true
	}
	return "", false
}

// backoff returns the wait before the next attempt. A 429 carrying a
// Retry-After header is honored exactly; otherwise the wait is 2^attempt
// seconds with no jitter.
func (t *retryTransport) backoff(resp *http.Response, attempt int) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if delay, ok := retryAfterDelay(resp.Header.Get("Retry-After")); ok {
			return delay
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// retryAfterDelay parses a Retry-After header value. A numeric value is
// interpreted as seconds; an HTTP-date waits until that instant, floored at 0.
func retryAfterDelay(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}

	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0), true
	}

	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
