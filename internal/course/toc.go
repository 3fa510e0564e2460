// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/course-engine/internal/llm"
)

// DefaultMaxChapters is used when the configured chapter limit is not positive.
const DefaultMaxChapters = 10

// enumerationPrefix matches the numbering a model puts in front of a title:
// "3. ", "3) ", "3、", "Chapter 3:", "第3章", and list bullets. "3." must be
// followed by whitespace so section numbers like "1.1" survive.
var enumerationPrefix = regexp.MustCompile(`^(?:\d+[.)]\s+|\d+\s*、\s*|(?i:chapter)\s*\d+\s*[:：.]?\s*|第\s*[0-9一二三四五六七八九十百]+\s*章\s*[:：、.]?\s*|[-*•]\s+)`)

// GenerateTOC asks the model for chapter titles. An empty answer yields an
// empty list. A client error is returned unchanged in meaning, wrapped.
func GenerateTOC(ctx context.Context, client llm.Client, content string, maxChapters int, fixedCount bool, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxChapters <= 0 {
		maxChapters = DefaultMaxChapters
	}

	vars := map[string]string{
		varContent:     content,
		varMaxChapters: strconv.Itoa(maxChapters),
	}
	if fixedCount {
		vars[varFixedCount] = "true"
	}

	resp, err := client.Invoke(ctx, llm.Request{Name: promptTOC, Template: tocTmpl, Vars: vars})
	if err != nil {
		return nil, fmt.Errorf("generating table of contents: %w", err)
	}

	titles := ParseTOC(resp.Text)
	if len(titles) > maxChapters {
		logger.WarnContext(ctx, "table of contents exceeds chapter limit",
			"titles", len(titles), "max_chapters", maxChapters)
	}
	return titles, nil
}

// ParseTOC splits a numbered list into bare titles, dropping blank lines.
func ParseTOC(text string) []string {
	titles := []string{}
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		t = strings.TrimSpace(enumerationPrefix.ReplaceAllString(t, ""))
		if t == "" {
			continue
		}
		titles = append(titles, t)
	}
	return titles
}
