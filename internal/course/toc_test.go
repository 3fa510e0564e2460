// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/internal/llm/llmtest"
)

func TestParseTOC(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "numbered list", text: "1. Intro\n2. Basics\n", want: []string{"Intro", "Basics"}},
		{name: "empty", text: "", want: []string{}},
		{name: "blank lines dropped", text: "\n1. A\n\n\n2. B\n  \n", want: []string{"A", "B"}},
		{name: "parenthesis", text: "1) A\n2) B", want: []string{"A", "B"}},
		{name: "chinese enumeration", text: "1、基础\n2、进阶", want: []string{"基础", "进阶"}},
		{name: "chinese chapter", text: "第1章 基础\n第十章：总结", want: []string{"基础", "总结"}},
		{name: "english chapter", text: "Chapter 1: Intro\nchapter 2 Basics", want: []string{"Intro", "Basics"}},
		{name: "bullets", text: "- A\n* B", want: []string{"A", "B"}},
		{name: "no numbering", text: "Intro\nBasics", want: []string{"Intro", "Basics"}},
		{name: "crlf", text: "1. A\r\n2. B\r\n", want: []string{"A", "B"}},
		{name: "decimal section numbers kept", text: "1. Basics\n1.1 Setup\n1.2) Tools", want: []string{"Basics", "1.1 Setup", "1.2) Tools"}},
		{name: "number without separator kept", text: "3D Printing\n2024 Review", want: []string{"3D Printing", "2024 Review"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTOC(tt.text))
		})
	}
}

func TestGenerateTOC(t *testing.T) {
	client := &llmtest.ScriptedClient{Respond: func(llm.Request) (string, error) {
		return "1. Intro\n2. Basics\n", nil
	}}

	titles, err := GenerateTOC(context.Background(), client, "raw content", 5, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro", "Basics"}, titles)

	calls := client.CallsNamed(promptTOC)
	require.Len(t, calls, 1)
	assert.Equal(t, "raw content", calls[0].Vars[varContent])
	assert.Equal(t, "5", calls[0].Vars[varMaxChapters])
	assert.Equal(t, "true", calls[0].Vars[varFixedCount])
}

func TestGenerateTOC_DefaultsAndAdaptive(t *testing.T) {
	client := &llmtest.ScriptedClient{Respond: func(llm.Request) (string, error) { return "", nil }}

	titles, err := GenerateTOC(context.Background(), client, "c", 0, false, nil)
	require.NoError(t, err)
	assert.Empty(t, titles)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "10", calls[0].Vars[varMaxChapters])
	_, fixed := calls[0].Vars[varFixedCount]
	assert.False(t, fixed)
}

func TestGenerateTOC_KeepsTitlesBeyondLimit(t *testing.T) {
	client := &llmtest.ScriptedClient{Respond: func(llm.Request) (string, error) {
		return "1. A\n2. B\n3. C", nil
	}}
	titles, err := GenerateTOC(context.Background(), client, "c", 2, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles)
}

func TestGenerateTOC_ClientError(t *testing.T) {
	boom := errors.New("boom")
	client := &llmtest.ScriptedClient{Respond: func(llm.Request) (string, error) { return "", boom }}

	_, err := GenerateTOC(context.Background(), client, "c", 3, false, nil)
	assert.ErrorIs(t, err, boom)
}

func TestTOCPromptRendering(t *testing.T) {
	fixed, err := llm.Request{Template: tocTmpl, Vars: map[string]string{
		varContent: "body", varMaxChapters: "5", varFixedCount: "true",
	}}.Render()
	require.NoError(t, err)
	assert.Contains(t, fixed, "exactly 5")
	assert.Contains(t, fixed, "body")

	adaptive, err := llm.Request{Template: tocTmpl, Vars: map[string]string{
		varContent: "body", varMaxChapters: "5",
	}}.Render()
	require.NoError(t, err)
	assert.Contains(t, adaptive, "with 1-5")
	assert.Contains(t, adaptive, "based on the content depth")
}
