// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

// Pool generates chapters concurrently on a bounded set of workers. Each
// worker builds its own client from Snapshot, so no client is shared.
type Pool struct {
	Snapshot types.LLMConfig
	Factory  llm.Factory
	Sink     ChapterSink
	Observer Observer
	Logger   *slog.Logger
	Options  types.ParallelConfig

	CourseTitle        string
	CustomInstructions string

	// sleep replaces both the submission throttle and the retry backoff in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Validate reports option combinations the pool cannot run with.
func (p *Pool) Validate() error {
	o := p.Options
	var errs []error
	if o.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("max workers must not be negative, got %d", o.MaxWorkers))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", o.MaxRetries))
	}
	if o.DelayMin < 0 || o.DelayMax < 0 || o.RetryDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if o.DelayMin > o.DelayMax {
		errs = append(errs, fmt.Errorf("delay min %s exceeds delay max %s", o.DelayMin, o.DelayMax))
	}
	if p.Factory == nil {
		errs = append(errs, errors.New("client factory is required"))
	}
	return errors.Join(errs...)
}

// GenerateAll produces one record per spec, in input order. Per-chapter
// failures become error records; only invalid options return an error.
func (p *Pool) GenerateAll(ctx context.Context, specs []types.ChapterSpec, content string) ([]types.ChapterRecord, error) {
	saved, _, err := p.generateAll(ctx, specs, content)
	return saved, err
}

// generateAll also returns the records as generated, before a save failure
// could replace their summary, for building digests.
func (p *Pool) generateAll(ctx context.Context, specs []types.ChapterSpec, content string) (saved, generated []types.ChapterRecord, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid parallel options: %w", err)
	}

	logger := p.logger()
	saved = make([]types.ChapterRecord, len(specs))
	generated = make([]types.ChapterRecord, len(specs))
	if len(specs) == 0 {
		return saved, generated, nil
	}

	workers := p.Options.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.InfoContext(ctx, "starting chapter pool", "chapters", len(specs), "workers", workers)

	wp := pool.New().WithMaxGoroutines(workers)
	for i, spec := range specs {
		delay := p.throttle()
		logger.DebugContext(ctx, "submitting chapter",
			"chapter", i+1, "total", len(specs), "delay", delay)
		if err := p.wait(ctx, delay); err != nil {
			err = fmt.Errorf("chapter %d not started: %w", i+1, err)
			saved[i] = workerErrorRecord(spec, err)
			generated[i] = saved[i]
			p.observer().ChapterFailed(spec, err)
			continue
		}
		wp.Go(func() {
			saved[i], generated[i] = p.runWorker(ctx, spec, content)
		})
	}
	wp.Wait()

	logger.InfoContext(ctx, "chapter pool finished", "chapters", len(specs))
	return saved, generated, nil
}

// runWorker generates, persists and reports one chapter, returning the
// record as saved and as generated. It never panics.
func (p *Pool) runWorker(ctx context.Context, spec types.ChapterSpec, content string) (saved, generated types.ChapterRecord) {
	logger := p.logger().With("chapter", spec.Number(), "title", spec.Title)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker panicked: %v", r)
			logger.ErrorContext(ctx, "chapter worker failed", "error", err)
			saved = workerErrorRecord(spec, err)
			generated = saved
			p.observer().ChapterFailed(spec, err)
		}
	}()

	client, err := p.Factory(ctx, p.Snapshot)
	if err != nil {
		err = fmt.Errorf("building client: %w", err)
		logger.ErrorContext(ctx, "chapter worker failed", "error", err)
		p.observer().ChapterFailed(spec, err)
		rec := workerErrorRecord(spec, err)
		return rec, rec
	}

	retrier := NewRetrier(p.Options, logger)
	retrier.sleep = p.sleep
	generated = retrier.Generate(ctx, LLMChapterGenerator{Client: client}, ChapterRequest{
		Title:              spec.Title,
		Content:            content,
		CustomInstructions: p.CustomInstructions,
	})
	return persistChapter(ctx, p.sink(), p.observer(), logger, p.CourseTitle, spec, generated), generated
}

func (p *Pool) throttle() time.Duration {
	lo, hi := p.Options.DelayMin, p.Options.DelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func (p *Pool) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (p *Pool) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pool) observer() Observer {
	if p.Observer != nil {
		return p.Observer
	}
	return nopObserver{}
}

func (p *Pool) sink() ChapterSink {
	if p.Sink != nil {
		return p.Sink
	}
	return nopSink{}
}

// persistChapter saves rec and notifies obs. A sink failure keeps the
// generated text but marks the record as an error.
func persistChapter(ctx context.Context, sink ChapterSink, obs Observer, logger *slog.Logger, courseTitle string, spec types.ChapterSpec, rec types.ChapterRecord) types.ChapterRecord {
	path, err := sink.SaveChapter(courseTitle, spec.Index, rec)
	if err != nil {
		err = fmt.Errorf("saving chapter %d: %w", spec.Number(), err)
		logger.ErrorContext(ctx, "chapter not saved", "chapter", spec.Number(), "error", err)
		obs.ChapterFailed(spec, err)
		rec.Summary = fmt.Sprintf("%s Failed to save chapter %d: %v", types.ErrorMarker, spec.Number(), err)
		return rec
	}
	logger.InfoContext(ctx, "chapter saved", "chapter", spec.Number(), "path", path, "failed", rec.IsError())
	obs.ChapterSaved(spec, rec, path)
	return rec
}

func workerErrorRecord(spec types.ChapterSpec, err error) types.ChapterRecord {
	return types.ChapterRecord{
		Title:       spec.Title,
		Summary:     fmt.Sprintf("%s Failed to generate chapter %d", types.ErrorMarker, spec.Number()),
		Explanation: fmt.Sprintf("The chapter generation process encountered an error: %v", err),
		Extension:   "Please try regenerating this chapter or check your API configuration.",
	}
}
