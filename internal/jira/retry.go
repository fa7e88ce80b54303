package jira

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RetriesMetric counts retried Jira requests, labeled by status.
	RetriesMetric = "jirabridge.jira.retries"

	DefaultMaxRetries     = 3
	DefaultAttemptTimeout = 30 * time.Second
)

// maxRetainedBody caps how much of a retryable error response is kept in memory.
const maxRetainedBody = 64 << 10

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy struct {
	MaxRetries     uint64                                    // retries after the first attempt
	AttemptTimeout time.Duration                             // ceiling per attempt; 0 disables it
	ShouldRetry    func(resp *http.Response, err error) bool // nil uses DefaultShouldRetry
	NewBackOff     func() backoff.BackOff                    // nil uses an exponential backoff
}

// DefaultRetryPolicy returns 3 retries with exponential backoff and a 30s attempt ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		AttemptTimeout: DefaultAttemptTimeout,
		ShouldRetry:    DefaultShouldRetry,
		NewBackOff:     newExponentialBackOff,
	}
}

// DefaultShouldRetry retries network failures, 429 and 5xx responses.
// Timeouts and cancellations are final.
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || isTimeout(err) {
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

func newExponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 8 * time.Second
	b.MaxElapsedTime = 0 // bounded by MaxRetries
	return b
}

// errRetryableStatus marks an attempt that returned a retryable HTTP status.
var errRetryableStatus = errors.New("retryable response status")

// RetryTransport wraps a RoundTripper with RetryPolicy.
// Attempts run sequentially; each one completes before the next is issued.
type RetryTransport struct {
	Base    http.RoundTripper
	Policy  RetryPolicy
	Logger  *slog.Logger
	retries metric.Int64Counter
}

// NewRetryTransport returns a RetryTransport around base that counts retries
// on the global meter provider.
func NewRetryTransport(base http.RoundTripper, policy RetryPolicy, logger *slog.Logger) *RetryTransport {
	return newRetryTransport(base, policy, logger, otel.GetMeterProvider())
}

func newRetryTransport(base http.RoundTripper, policy RetryPolicy, logger *slog.Logger, mp metric.MeterProvider) *RetryTransport {
	if base == nil {
		base = newHTTPTransport()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	retries, _ := mp.Meter(scopeName).Int64Counter(RetriesMetric,
		metric.WithDescription("Retried Jira requests"),
	)
	return &RetryTransport{
		Base:    base,
		Policy:  policy,
		Logger:  logger,
		retries: retries,
	}
}

// RoundTrip executes req, retrying per Policy. When retries are exhausted on a
// retryable status the last response is returned so callers can inspect it.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	shouldRetry := t.Policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	newBackOff := t.Policy.NewBackOff
	if newBackOff == nil {
		newBackOff = newExponentialBackOff
	}

	ctx := req.Context()
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), t.Policy.MaxRetries), ctx)

	var (
		final    *http.Response
		lastResp *http.Response
		attempt  int
	)

	operation := func() error {
		attempt++
		resp, err := t.attempt(req)
		if err != nil {
			if shouldRetry(nil, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !shouldRetry(resp, nil) {
			final = resp
			return nil
		}
		lastResp = resp
		return errRetryableStatus
	}

	notify := func(err error, wait time.Duration) {
		attrs := []any{"method", req.Method, "path", req.URL.Path, "attempt", attempt, "wait", wait}
		status := "error"
		if errors.Is(err, errRetryableStatus) && lastResp != nil {
			status = strconv.Itoa(lastResp.StatusCode)
			attrs = append(attrs, "status", lastResp.StatusCode)
		} else {
			attrs = append(attrs, "error", err)
		}
		t.Logger.Warn("retrying jira request", attrs...)
		if t.retries != nil {
			t.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		}
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return final, nil
	}
	if errors.Is(err, errRetryableStatus) && lastResp != nil {
		return lastResp, nil
	}
	return nil, err
}

// attempt runs a single try bounded by AttemptTimeout.
func (t *RetryTransport) attempt(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	if t.Policy.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(req.Context(), t.Policy.AttemptTimeout)
	}

	r := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		r.Body = body
	}

	resp, err := t.Base.RoundTrip(r)
	if err != nil {
		cancel()
		return nil, err
	}

	shouldRetry := t.Policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	if shouldRetry(resp, nil) {
		// buffer retryable responses so the connection is released before waiting
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRetainedBody))
		resp.Body.Close() // nolint:errcheck
		cancel()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the attempt context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
