// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package course turns source text into a structured course: a table of
// contents, one generated chapter per entry and a course summary. Chapters
// are persisted through a ChapterSink as soon as each one is ready.
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

// Orchestrator drives one course generation run.
type Orchestrator struct {
	// LLM is the snapshot every client is built from.
	LLM        types.LLMConfig
	Generation types.GenerationConfig
	Parallel   types.ParallelConfig

	Factory  llm.Factory
	Sink     ChapterSink
	Observer Observer
	Logger   *slog.Logger

	// sleep replaces throttle and backoff waits in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Mode returns the configured strategy. An unset mode selects parallel
// when the parallel settings are enabled and sequential otherwise.
func (o *Orchestrator) Mode() types.Mode {
	if o.Generation.Mode != "" {
		return o.Generation.Mode
	}
	if o.Parallel.Enabled {
		return types.ModeParallel
	}
	return types.ModeSequential
}

// Run generates the course for content. The returned course is non-nil
// whenever chapters were produced, even when the summary step fails, so
// callers can still report what was saved.
func (o *Orchestrator) Run(ctx context.Context, title, content string) (*types.Course, error) {
	logger := o.logger().With("course", title)
	if o.Factory == nil {
		return nil, errors.New("client factory is required")
	}

	mode := o.Mode()
	logger.InfoContext(ctx, "course generation started", "state", "init", "mode", mode)

	client, err := o.Factory(ctx, o.LLM)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	titles, err := GenerateTOC(ctx, client, content, o.Generation.MaxChapters, o.Generation.FixedChapterCount, logger)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "table of contents generated", "state", "toc_generated", "chapters", len(titles))

	c := &types.Course{Content: content, Chapters: []types.ChapterRecord{}}
	if len(titles) == 0 {
		logger.WarnContext(ctx, "table of contents is empty", "state", "done_empty")
		return c, nil
	}

	specs := types.NewChapterSpecs(titles)
	// generated keeps each record as the model produced it. Digests are
	// built from it so a save failure does not replace a chapter summary.
	var generated []types.ChapterRecord
	switch mode {
	case types.ModeParallel:
		p := &Pool{
			Snapshot:           o.LLM,
			Factory:            o.Factory,
			Sink:               o.Sink,
			Observer:           o.Observer,
			Logger:             logger,
			Options:            o.Parallel,
			CourseTitle:        title,
			CustomInstructions: o.Generation.CustomInstructions,
			sleep:              o.sleep,
		}
		c.Chapters, generated, err = p.generateAll(ctx, specs, content)
		if err != nil {
			return nil, err
		}
	case types.ModeSequential, types.ModeCascade:
		c.Chapters, generated = o.generateInOrder(ctx, client, title, specs, content, mode == types.ModeCascade, logger)
	default:
		return nil, fmt.Errorf("unknown generation mode %q", mode)
	}
	logger.InfoContext(ctx, "chapters generated", "state", "chapters_generated",
		"chapters", len(c.Chapters), "failed", c.FailedChapters())

	c.Summary, err = GenerateSummary(ctx, client, content, generated)
	if err != nil {
		logger.ErrorContext(ctx, "course summary failed", "error", err)
		return c, err
	}
	path, err := o.sink().SaveSummary(title, c)
	if err != nil {
		return c, fmt.Errorf("saving course summary: %w", err)
	}
	logger.InfoContext(ctx, "course summary generated", "state", "summary_generated", "path", path)
	return c, nil
}

// generateInOrder runs the retrier on the calling goroutine, one chapter at
// a time. In cascade mode every chapter after the first sees a digest of
// the chapters before it. It returns the records as saved and as generated.
func (o *Orchestrator) generateInOrder(ctx context.Context, client llm.Client, title string, specs []types.ChapterSpec, content string, cascade bool, logger *slog.Logger) (saved, generated []types.ChapterRecord) {
	retrier := NewRetrier(o.Parallel, logger)
	retrier.sleep = o.sleep
	gen := LLMChapterGenerator{Client: client}

	saved = make([]types.ChapterRecord, 0, len(specs))
	generated = make([]types.ChapterRecord, 0, len(specs))
	for _, spec := range specs {
		req := ChapterRequest{
			Title:              spec.Title,
			Content:            content,
			CustomInstructions: o.Generation.CustomInstructions,
		}
		if cascade && len(generated) > 0 {
			req.PreviousSummary = CascadeDigest(generated)
		}
		rec := retrier.Generate(ctx, gen, req)
		generated = append(generated, rec)
		saved = append(saved, persistChapter(ctx, o.sink(), o.observer(), logger, title, spec, rec))
	}
	return saved, generated
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) observer() Observer {
	if o.Observer != nil {
		return o.Observer
	}
	return nopObserver{}
}

func (o *Orchestrator) sink() ChapterSink {
	if o.Sink != nil {
		return o.Sink
	}
	return nopSink{}
}
