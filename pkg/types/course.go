// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for course generation:
// table-of-contents entries, chapter records, courses and configuration.
package types

import "strings"

// ErrorMarker prefixes the Summary of every chapter record produced by a
// failed generation, so failures stay visible in output files.
const ErrorMarker = "Error:"

// ChapterSpec is one entry of the table of contents.
type ChapterSpec struct {
	// Index is the 0-based position in the table of contents. It determines
	// output order and the 1-based number used in file names.
	Index int `json:"index" yaml:"index"`

	// Title is the chapter title produced by TOC generation.
	Title string `json:"title" yaml:"title"`
}

// Number returns the 1-based chapter number.
func (s ChapterSpec) Number() int {
	return s.Index + 1
}

// NewChapterSpecs pairs each title with its position.
func NewChapterSpecs(titles []string) []ChapterSpec {
	specs := make([]ChapterSpec, len(titles))
	for i, t := range titles {
		specs[i] = ChapterSpec{Index: i, Title: t}
	}
	return specs
}

// ChapterRecord is the structured content of one generated chapter.
type ChapterRecord struct {
	Title       string `json:"title" yaml:"title"`
	Summary     string `json:"summary" yaml:"summary"`
	Explanation string `json:"explanation" yaml:"explanation"`
	Extension   string `json:"extension" yaml:"extension"`
}

// IsError reports whether the record was built to describe a failure.
func (r ChapterRecord) IsError() bool {
	return strings.HasPrefix(r.Summary, ErrorMarker)
}

// Course is the aggregate produced by one generation run.
type Course struct {
	// Content is the original source text.
	Content string `json:"content" yaml:"content"`

	// Chapters holds one record per TOC entry, in TOC order.
	Chapters []ChapterRecord `json:"chapters" yaml:"chapters"`

	// Summary is the course-level summary. Empty when there are no chapters.
	Summary string `json:"summary" yaml:"summary"`
}

// FailedChapters returns the number of chapters carrying an error record.
func (c *Course) FailedChapters() int {
	n := 0
	for _, ch := range c.Chapters {
		if ch.IsError() {
			n++
		}
	}
	return n
}
