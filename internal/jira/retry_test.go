package jira

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// response builds a minimal response with the given status and body.
func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// failing returns a transport that answers the first n calls with fail and then succeeds.
func failing(n int, fail func() (*http.Response, error), calls *int) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		*calls++
		if *calls <= n {
			return fail()
		}
		return response(http.StatusOK, `{"ok":true}`), nil
	})
}

func TestDefaultShouldRetry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "200", resp: response(200, ""), want: false},
		{name: "400", resp: response(400, ""), want: false},
		{name: "401", resp: response(401, ""), want: false},
		{name: "404", resp: response(404, ""), want: false},
		{name: "429", resp: response(429, ""), want: true},
		{name: "500", resp: response(500, ""), want: true},
		{name: "503", resp: response(503, ""), want: true},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: true},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "jira.invalid"}, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "nothing", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DefaultShouldRetry(tc.resp, tc.err))
		})
	}
}

func TestRetryTransport(t *testing.T) {
	t.Parallel()

	newReq := func(t *testing.T) *http.Request {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, "https://jira.example.com/rest/api/3/field", nil)
		require.NoError(t, err)
		return req
	}

	t.Run("succeeds after N network failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := failing(2, func() (*http.Response, error) {
			return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		}, &calls)
		rt := NewRetryTransport(base, fastPolicy(3), nil)

		resp, err := rt.RoundTrip(newReq(t))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(body))
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last retryable response when exhausted", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := failing(10, func() (*http.Response, error) {
			return response(http.StatusBadGateway, `{"message":"bad gateway"}`), nil
		}, &calls)
		rt := NewRetryTransport(base, fastPolicy(3), nil)

		resp, err := rt.RoundTrip(newReq(t))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, `{"message":"bad gateway"}`, string(body))
		assert.Equal(t, 4, calls)
	})

	t.Run("returns last network error when exhausted", func(t *testing.T) {
		t.Parallel()

		calls := 0
		dnsErr := &net.DNSError{Err: "no such host", Name: "jira.invalid"}
		base := failing(10, func() (*http.Response, error) { return nil, dnsErr }, &calls)
		rt := NewRetryTransport(base, fastPolicy(2), nil)

		resp, err := rt.RoundTrip(newReq(t))
		assert.Nil(t, resp)
		require.Error(t, err)
		assert.ErrorAs(t, err, &dnsErr)
		assert.Equal(t, 3, calls)
	})

	t.Run("non retryable status returned immediately", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := failing(10, func() (*http.Response, error) {
			return response(http.StatusBadRequest, `{}`), nil
		}, &calls)
		rt := NewRetryTransport(base, fastPolicy(3), nil)

		resp, err := rt.RoundTrip(newReq(t))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("custom predicate and backoff are honored", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := failing(1, func() (*http.Response, error) {
			return response(http.StatusConflict, ``), nil
		}, &calls)

		var waits int
		policy := RetryPolicy{
			MaxRetries: 1,
			ShouldRetry: func(resp *http.Response, err error) bool {
				return resp != nil && resp.StatusCode == http.StatusConflict
			},
			NewBackOff: func() backoff.BackOff {
				waits++
				return backoff.NewConstantBackOff(time.Millisecond)
			},
		}
		rt := NewRetryTransport(base, policy, nil)

		resp, err := rt.RoundTrip(newReq(t))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, waits)
	})

	t.Run("zero retries makes a single attempt", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := failing(10, func() (*http.Response, error) {
			return response(http.StatusServiceUnavailable, ``), nil
		}, &calls)
		rt := NewRetryTransport(base, fastPolicy(0), nil)

		resp, err := rt.RoundTrip(newReq(t))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			cancel()
			return response(http.StatusServiceUnavailable, ``), nil
		})
		policy := fastPolicy(3)
		policy.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }
		rt := NewRetryTransport(base, policy, nil)

		req := newReq(t).WithContext(ctx)
		_, err := rt.RoundTrip(req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	})

	t.Run("attempt timeout bounds each try", func(t *testing.T) {
		t.Parallel()

		calls := 0
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			<-r.Context().Done()
			return nil, r.Context().Err()
		})
		policy := fastPolicy(3)
		policy.AttemptTimeout = 20 * time.Millisecond
		rt := NewRetryTransport(base, policy, nil)

		_, err := rt.RoundTrip(newReq(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, 1, calls)
	})
}
