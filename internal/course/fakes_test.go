// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/course-engine/pkg/types"
)

// memorySink keeps saved chapters in memory. failIndex makes SaveChapter
// fail for one chapter index.
type memorySink struct {
	mu        sync.Mutex
	chapters  map[int]types.ChapterRecord
	order     []int
	summary   *types.Course
	failIndex int
	summErr   error
}

func newMemorySink() *memorySink {
	return &memorySink{chapters: map[int]types.ChapterRecord{}, failIndex: -1}
}

func (s *memorySink) SaveChapter(_ string, index int, rec types.ChapterRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index == s.failIndex {
		return "", errors.New("disk full")
	}
	s.chapters[index] = rec
	s.order = append(s.order, index)
	return fmt.Sprintf("mem/chapter_%02d.md", index+1), nil
}

func (s *memorySink) SaveSummary(_ string, c *types.Course) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summErr != nil {
		return "", s.summErr
	}
	s.summary = c
	return "mem/summary.md", nil
}

// recordingObserver collects notifications.
type recordingObserver struct {
	mu     sync.Mutex
	saved  map[int]string
	failed map[int]error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{saved: map[int]string{}, failed: map[int]error{}}
}

func (o *recordingObserver) ChapterSaved(spec types.ChapterSpec, _ types.ChapterRecord, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saved[spec.Index] = path
}

func (o *recordingObserver) ChapterFailed(spec types.ChapterSpec, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[spec.Index] = err
}

// noSleep skips every throttle and backoff wait.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// chapterText renders a well-formed chapter answer for title.
func chapterText(title string) string {
	return fmt.Sprintf("# 标题与摘要\nsummary of %s\n\n# 系统性讲解\nexplanation of %s\n\n# 拓展思考\nextension of %s", title, title, title)
}
