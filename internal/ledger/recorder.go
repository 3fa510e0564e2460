// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"log/slog"

	"github.com/pdiddy/course-engine/pkg/types"
)

// Recorder writes chapter notifications for one run into the ledger. It
// satisfies course.Observer. Ledger errors are logged, never returned, so
// bookkeeping cannot fail a generation run.
type Recorder struct {
	Ledger *Ledger
	RunID  string
	Logger *slog.Logger
}

// ChapterSaved records the saved chapter.
func (r *Recorder) ChapterSaved(spec types.ChapterSpec, rec types.ChapterRecord, path string) {
	if err := r.Ledger.RecordChapter(context.Background(), r.RunID, spec, rec, path); err != nil {
		r.logger().Warn("ledger write failed", "run", r.RunID, "chapter", spec.Number(), "error", err)
	}
}

// ChapterFailed records the failure.
func (r *Recorder) ChapterFailed(spec types.ChapterSpec, cause error) {
	if err := r.Ledger.RecordFailure(context.Background(), r.RunID, spec, cause); err != nil {
		r.logger().Warn("ledger write failed", "run", r.RunID, "chapter", spec.Number(), "error", err)
	}
}

func (r *Recorder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
