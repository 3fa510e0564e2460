// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

// ChapterRequest carries everything one chapter prompt needs.
type ChapterRequest struct {
	Title              string
	Content            string
	CustomInstructions string

	// PreviousSummary is set in cascade mode for every chapter after the first.
	PreviousSummary string
}

// ChapterGenerator produces one chapter record. An error means the attempt
// may be retried; a returned record is final for that attempt.
type ChapterGenerator interface {
	GenerateChapter(ctx context.Context, req ChapterRequest) (types.ChapterRecord, error)
}

// LLMChapterGenerator renders the chapter prompt and parses the answer.
type LLMChapterGenerator struct {
	Client llm.Client
}

// GenerateChapter sends one chapter request. Client errors are returned;
// an unusable response becomes an error record instead.
func (g LLMChapterGenerator) GenerateChapter(ctx context.Context, req ChapterRequest) (types.ChapterRecord, error) {
	vars := map[string]string{
		varChapterTitle: req.Title,
		varContent:      req.Content,
	}
	if req.CustomInstructions != "" {
		vars[varCustomPrompt] = req.CustomInstructions
	}
	if req.PreviousSummary != "" {
		vars[varPreviousSummary] = req.PreviousSummary
	}

	resp, err := g.Client.Invoke(ctx, llm.Request{Name: promptChapter, Template: chapterTmpl, Vars: vars})
	if err != nil {
		return types.ChapterRecord{}, fmt.Errorf("generating chapter %q: %w", req.Title, err)
	}

	if !utf8.ValidString(resp.Text) || strings.ContainsRune(resp.Text, 0) {
		return errorRecord(req.Title,
			"Error: The model returned a response that could not be read.",
			"The response contained invalid UTF-8 or NUL bytes and was discarded.",
			"Please check the LLM configuration and prompt template."), nil
	}

	return safeParse(req.Title, resp.Text), nil
}

func safeParse(title, text string) (rec types.ChapterRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = errorRecord(title,
				"Error: Failed to parse chapter content.",
				fmt.Sprintf("Parsing the model response failed: %v", r),
				"Please check the LLM configuration and prompt template.")
		}
	}()
	return ParseChapter(title, text)
}

func errorRecord(title, summary, explanation, extension string) types.ChapterRecord {
	return types.ChapterRecord{
		Title:       title,
		Summary:     summary,
		Explanation: explanation,
		Extension:   extension,
	}
}
