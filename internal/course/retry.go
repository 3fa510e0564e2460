// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pdiddy/course-engine/pkg/types"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// maxJitter bounds the random addition to every backoff.
const maxJitter = time.Second

var errEmptyExplanation = errors.New("empty chapter explanation received")

// Retrier re-runs a ChapterGenerator with exponential backoff. Generate
// never returns an error: exhausted attempts yield an error record.
type Retrier struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative values are treated as zero.
	MaxRetries int

	// BaseDelay is the backoff base; attempt k waits BaseDelay*2^k plus jitter.
	BaseDelay time.Duration

	Logger *slog.Logger

	// sleep and jitter are replaced in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewRetrier builds a Retrier from the parallel settings, applying the
// defaults for zero values.
func NewRetrier(opts types.ParallelConfig, logger *slog.Logger) *Retrier {
	r := &Retrier{MaxRetries: opts.MaxRetries, BaseDelay: opts.RetryDelay, Logger: logger}
	if r.BaseDelay <= 0 {
		r.BaseDelay = DefaultRetryDelay
	}
	return r
}

// Generate runs gen until it yields a record with a non-blank Explanation
// or the retries are spent. The first success is returned unmodified.
func (r *Retrier) Generate(ctx context.Context, gen ChapterGenerator, req ChapterRequest) types.ChapterRecord {
	logger := r.logger()
	maxRetries := max(r.MaxRetries, 0)
	attempts := maxRetries + 1

	var lastErr error
	for k := 0; k <= maxRetries; k++ {
		logger.InfoContext(ctx, "generating chapter",
			"title", req.Title, "attempt", k+1, "max_attempts", attempts)

		rec, err := r.attempt(ctx, gen, req)
		if err == nil && strings.TrimSpace(rec.Explanation) == "" {
			err = errEmptyExplanation
		}
		if err == nil {
			logger.InfoContext(ctx, "chapter generated",
				"title", req.Title, "attempt", k+1, "explanation_chars", len(rec.Explanation))
			return rec
		}
		lastErr = err

		if k == maxRetries {
			break
		}

		delay := r.backoff(k)
		logger.WarnContext(ctx, "chapter generation failed, retrying",
			"title", req.Title, "attempt", k+1, "max_attempts", attempts,
			"delay", delay, "error", err)
		if err := r.wait(ctx, delay); err != nil {
			logger.ErrorContext(ctx, "chapter retry cancelled", "title", req.Title, "error", err)
			return types.ChapterRecord{
				Title:       req.Title,
				Summary:     fmt.Sprintf("%s Chapter generation was cancelled after %d attempts.", types.ErrorMarker, k+1),
				Explanation: fmt.Sprintf("The chapter generation process was interrupted: %v (last error: %v)", err, lastErr),
				Extension:   "Please try regenerating this chapter.",
			}
		}
	}

	logger.ErrorContext(ctx, "all retry attempts failed",
		"title", req.Title, "attempts", attempts, "error", lastErr)
	return ExhaustedRecord(req.Title, attempts, lastErr)
}

// ExhaustedRecord builds the record returned when every attempt failed.
func ExhaustedRecord(title string, attempts int, cause error) types.ChapterRecord {
	return types.ChapterRecord{
		Title:       title,
		Summary:     fmt.Sprintf("%s Failed to generate chapter content after %d attempts.", types.ErrorMarker, attempts),
		Explanation: fmt.Sprintf("The chapter generation process encountered repeated errors: %v", cause),
		Extension:   "Please try regenerating this chapter or check your API configuration.",
	}
}

func (r *Retrier) attempt(ctx context.Context, gen ChapterGenerator, req ChapterRequest) (rec types.ChapterRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("chapter generator panicked: %v", p)
		}
	}()
	return gen.GenerateChapter(ctx, req)
}

func (r *Retrier) backoff(k int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultRetryDelay
	}
	jitter := r.jitter
	if jitter == nil {
		jitter = func() time.Duration { return rand.N(maxJitter) }
	}
	return base*time.Duration(1<<k) + jitter()
}

func (r *Retrier) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (r *Retrier) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
