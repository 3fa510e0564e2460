// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"strings"

	"github.com/pdiddy/course-engine/pkg/types"
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionExplanation
	sectionExtension
)

// sectionMarker lists the names recognised for one section. Headings are
// level-1 lines ("# Name"); deeper headings belong to the section body.
// Bare markers match at the start of any other line.
type sectionMarker struct {
	section  section
	headings []string
	bare     []string
}

var sectionMarkers = []sectionMarker{
	{
		section:  sectionSummary,
		headings: []string{"标题与摘要", "摘要", "title and summary", "summary"},
		bare:     []string{"标题与摘要", "title and summary"},
	},
	{
		section:  sectionExplanation,
		headings: []string{"系统性讲解", "讲解", "systematic explanation", "explanation"},
		bare:     []string{"系统性讲解", "systematic explanation"},
	},
	{
		section:  sectionExtension,
		headings: []string{"拓展思考", "拓展", "extended thinking", "extension"},
		bare:     []string{"拓展思考", "extended thinking"},
	},
}

// ParseChapter splits a model response into the three chapter sections.
// It never fails: text outside any recognised section is dropped and
// missing sections stay empty. When a section appears twice the last
// occurrence wins.
func ParseChapter(title, text string) types.ChapterRecord {
	var (
		current = sectionNone
		buffers = map[section][]string{}
	)

	for _, line := range strings.Split(text, "\n") {
		if s, ok := matchMarker(line); ok {
			current = s
			buffers[s] = nil
			continue
		}
		if current != sectionNone {
			buffers[current] = append(buffers[current], line)
		}
	}

	join := func(s section) string {
		return strings.TrimSpace(strings.Join(buffers[s], "\n"))
	}
	return types.ChapterRecord{
		Title:       title,
		Summary:     join(sectionSummary),
		Explanation: join(sectionExplanation),
		Extension:   join(sectionExtension),
	}
}

func matchMarker(line string) (section, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return sectionNone, false
	}

	if strings.HasPrefix(trimmed, "#") {
		if strings.HasPrefix(trimmed, "##") {
			return sectionNone, false
		}
		heading := strings.ToLower(strings.TrimSpace(trimmed[1:]))
		for _, m := range sectionMarkers {
			for _, name := range m.headings {
				if strings.HasPrefix(heading, name) {
					return m.section, true
				}
			}
		}
		return sectionNone, false
	}

	lower := strings.ToLower(trimmed)
	for _, m := range sectionMarkers {
		for _, name := range m.bare {
			if strings.HasPrefix(lower, name) {
				return m.section, true
			}
		}
	}
	return sectionNone, false
}
