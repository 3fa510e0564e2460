// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

// GenerateSummary asks the model for a course-level summary built from the
// original content and every chapter's summary. A blank answer is an
// llm.ErrEmptyResponse error.
func GenerateSummary(ctx context.Context, client llm.Client, content string, chapters []types.ChapterRecord) (string, error) {
	resp, err := client.Invoke(ctx, llm.Request{
		Name:     promptSummary,
		Template: summaryTmpl,
		Vars: map[string]string{
			varContent:         content,
			varChaptersSummary: ChapterDigest(chapters),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generating course summary: %w", err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", fmt.Errorf("generating course summary: %w", llm.ErrEmptyResponse)
	}
	return summary, nil
}

// ChapterDigest renders "Chapter i: title\nsummary" blocks separated by a
// blank line.
func ChapterDigest(chapters []types.ChapterRecord) string {
	blocks := make([]string, len(chapters))
	for i, ch := range chapters {
		blocks[i] = fmt.Sprintf("Chapter %d: %s\n%s", i+1, ch.Title, ch.Summary)
	}
	return strings.Join(blocks, "\n\n")
}

// CascadeDigest renders one "chapter k title: summary" line per prior
// chapter. It is handed to each cascade chapter as PreviousSummary.
func CascadeDigest(chapters []types.ChapterRecord) string {
	lines := make([]string, len(chapters))
	for i, ch := range chapters {
		lines[i] = fmt.Sprintf("chapter %d %s: %s", i+1, ch.Title, ch.Summary)
	}
	return strings.Join(lines, "\n")
}
