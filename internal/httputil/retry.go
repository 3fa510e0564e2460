// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for the provider clients.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff step for throttled or failing
// upstream responses. Tests override it to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// maxRetryAfter caps a server-provided Retry-After value.
const maxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 4

// Retryable reports whether a status code is worth another attempt:
// 429, 408 and every 5xx.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
}

// DoWithRetry sends body to url with the given headers and retries while the
// response status is Retryable. The delay doubles from RetryBaseDelay unless
// the response carries a Retry-After header in seconds, which wins.
//
// When maxRetries is 0 the default (4) is used. The body of a discarded
// response is drained and closed before sleeping. After exhausting retries
// the last response is returned so the caller can inspect it. A cancelled
// context during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, method, url string, header http.Header, body []byte, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.DebugContext(ctx, "upstream not ready, retrying",
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}
