// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink writes generated chapters and course summaries to disk as
// Markdown. Every file is written atomically so a crashed run never leaves
// a half-written chapter behind.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/course-engine/pkg/types"
)

// FileSink lays files out as <OutputDir>/<course>/chapter_NN_<title>.md.
type FileSink struct {
	OutputDir string

	// now stamps front matter; replaced in tests.
	now func() time.Time
}

// New returns a FileSink rooted at dir.
func New(dir string) *FileSink {
	return &FileSink{OutputDir: dir}
}

// frontMatter is the YAML header of every chapter file.
type frontMatter struct {
	Course      string `yaml:"course"`
	Chapter     int    `yaml:"chapter"`
	Title       string `yaml:"title"`
	Failed      bool   `yaml:"failed,omitempty"`
	GeneratedAt string `yaml:"generated_at"`
}

// CourseDir returns the directory holding a course's files.
func (s *FileSink) CourseDir(courseTitle string) string {
	return filepath.Join(s.OutputDir, SafeName(courseTitle))
}

// ChapterPath returns the file a chapter is written to.
func (s *FileSink) ChapterPath(courseTitle string, index int, chapterTitle string) string {
	name := fmt.Sprintf("chapter_%02d_%s.md", index+1, SafeName(chapterTitle))
	return filepath.Join(s.CourseDir(courseTitle), name)
}

// SummaryPath returns the file the course summary is written to.
func (s *FileSink) SummaryPath(courseTitle string) string {
	return filepath.Join(s.CourseDir(courseTitle), SafeName(courseTitle)+"_summary.md")
}

// SaveChapter writes one chapter and returns its path.
func (s *FileSink) SaveChapter(courseTitle string, index int, rec types.ChapterRecord) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("chapter index %d is negative", index)
	}
	path := s.ChapterPath(courseTitle, index, rec.Title)

	fm, err := yaml.Marshal(frontMatter{
		Course:      courseTitle,
		Chapter:     index + 1,
		Title:       rec.Title,
		Failed:      rec.IsError(),
		GeneratedAt: s.timestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", rec.Title)
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", rec.Summary)
	fmt.Fprintf(&b, "## Explanation\n\n%s\n\n", rec.Explanation)
	fmt.Fprintf(&b, "## Extension\n\n%s\n", rec.Extension)

	if err := writeAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("writing chapter %d: %w", index+1, err)
	}
	return path, nil
}

// SaveSummary writes the course summary with a numbered chapter list.
func (s *FileSink) SaveSummary(courseTitle string, c *types.Course) (string, error) {
	if c == nil {
		return "", fmt.Errorf("course %q is nil", courseTitle)
	}
	path := s.SummaryPath(courseTitle)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Course Summary\n\n", courseTitle)
	fmt.Fprintf(&b, "%s\n\n", c.Summary)
	b.WriteString("## Chapters\n\n")
	for i, ch := range c.Chapters {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ch.Title)
	}

	if err := writeAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("writing course summary: %w", err)
	}
	return path, nil
}

func (s *FileSink) timestamp() string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return now().UTC().Format(time.RFC3339)
}

// SafeName keeps letters, digits, '-' and '_'. Spaces and every other rune
// become '_'.
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// writeAtomic writes data to a temp file in the target directory, syncs it
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
