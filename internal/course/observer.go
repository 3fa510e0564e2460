// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"github.com/pdiddy/course-engine/pkg/types"
)

// ChapterSink persists chapters as soon as they are produced and the course
// summary at the end of a run. Implementations must be safe for concurrent
// SaveChapter calls with distinct indices.
type ChapterSink interface {
	SaveChapter(courseTitle string, index int, rec types.ChapterRecord) (string, error)
	SaveSummary(courseTitle string, c *types.Course) (string, error)
}

// Observer receives per-chapter notifications. Calls may arrive from
// several goroutines at once.
type Observer interface {
	ChapterSaved(spec types.ChapterSpec, rec types.ChapterRecord, path string)
	ChapterFailed(spec types.ChapterSpec, err error)
}

// Observers fans each notification out to every member.
type Observers []Observer

// ChapterSaved implements Observer.
func (obs Observers) ChapterSaved(spec types.ChapterSpec, rec types.ChapterRecord, path string) {
	for _, o := range obs {
		if o != nil {
			o.ChapterSaved(spec, rec, path)
		}
	}
}

// ChapterFailed implements Observer.
func (obs Observers) ChapterFailed(spec types.ChapterSpec, err error) {
	for _, o := range obs {
		if o != nil {
			o.ChapterFailed(spec, err)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ChapterSaved(types.ChapterSpec, types.ChapterRecord, string) {}
func (nopObserver) ChapterFailed(types.ChapterSpec, error) {}

type nopSink struct{}

func (nopSink) SaveChapter(string, int, types.ChapterRecord) (string, error) { return "", nil }
func (nopSink) SaveSummary(string, *types.Course) (string, error) { return "", nil }
