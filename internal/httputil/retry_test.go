// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

func statusSequence(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		idx := int(n) - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		w.WriteHeader(statuses[idx])
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestDoWithRetry_ImmediateSuccess(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusOK)

	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, nil, []byte("{}"), 3)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDoWithRetry_RetriesThrottledAndServerErrors(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusOK)

	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, nil, []byte("{}"), 5)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestDoWithRetry_ExhaustsRetries(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusTooManyRequests)

	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, nil, nil, 2)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	// 1 initial + 2 retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestDoWithRetry_DefaultMaxRetries(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusServiceUnavailable)

	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, nil, nil, 0)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(defaultMaxRetries+1), atomic.LoadInt32(calls))
}

func TestDoWithRetry_ClientErrorPassesThrough(t *testing.T) {
	ts, calls := statusSequence(t, http.StatusBadRequest)

	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, nil, nil, 5)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDoWithRetry_ResendsBodyAndHeaders(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	header := http.Header{}
	header.Set("x-api-key", "secret")
	resp, err := DoWithRetry(context.Background(), ts.Client(), http.MethodPost, ts.URL, header, []byte(`{"a":1}`), 3)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ts, _ := statusSequence(t, http.StatusTooManyRequests)

	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := DoWithRetry(ctx, ts.Client(), http.MethodPost, ts.URL, nil, nil, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, RetryBaseDelay, backoff(0, ""))
	assert.Equal(t, 4*RetryBaseDelay, backoff(2, ""))
	assert.Equal(t, 3*time.Second, backoff(0, "3"))
	assert.Equal(t, maxRetryAfter, backoff(0, "9999"))
	assert.Equal(t, 2*RetryBaseDelay, backoff(1, "soon"))
}
