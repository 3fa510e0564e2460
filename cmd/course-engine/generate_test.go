// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/course-engine/internal/ledger"
	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/internal/llm/llmtest"
	"github.com/pdiddy/course-engine/internal/secrets"
	"github.com/pdiddy/course-engine/pkg/types"
)

func chapterResponse(title string) string {
	return "# 标题与摘要\nabout " + title + "\n# 系统性讲解\nexplaining " + title + "\n# 拓展思考\nbeyond " + title + "\n"
}

// scripted answers with a two-chapter course. Chapters named in failing
// come back without an explanation.
func scripted(failing ...string) *llmtest.ScriptedClient {
	return &llmtest.ScriptedClient{Respond: func(req llm.Request) (string, error) {
		switch req.Name {
		case "toc":
			return "1. Foundations\n2. Practice\n", nil
		case "chapter":
			for _, f := range failing {
				if req.Vars["chapter_title"] == f {
					return "# 摘要\nonly a summary\n", nil
				}
			}
			return chapterResponse(req.Vars["chapter_title"]), nil
		case "summary":
			return "the whole course", nil
		}
		return "", errors.New("unexpected " + req.Name)
	}}
}

func testConfig(t *testing.T) types.CourseConfig {
	t.Helper()
	dir := t.TempDir()
	return types.CourseConfig{
		Title:     "Go Basics",
		InputText: "raw notes about go",
		OutputDir: filepath.Join(dir, "out"),
		LLM: types.LLMConfig{
			Provider: types.ProviderGemini,
			Model:    "test-model",
			APIKey:   "test-key",
		},
		Generation: types.GenerationConfig{Mode: types.ModeSequential, MaxChapters: 5},
		Parallel:   types.ParallelConfig{MaxRetries: 0},
		Logging:    types.LoggingConfig{Level: "error"},
		Ledger:     types.LedgerConfig{Enabled: true, Dir: filepath.Join(dir, "ledger")},
	}
}

func TestGenerator_Run(t *testing.T) {
	cfg := testConfig(t)
	client := scripted()
	var stdout, stderr bytes.Buffer
	g := &generator{cfg: cfg, stdout: &stdout, stderr: &stderr, factory: client.Factory(nil)}

	require.NoError(t, g.run(context.Background()))

	courseDir := filepath.Join(cfg.OutputDir, "Go_Basics")
	for _, name := range []string{"chapter_01_Foundations.md", "chapter_02_Practice.md", "Go_Basics_summary.md"} {
		assert.FileExists(t, filepath.Join(courseDir, name))
	}
	data, err := os.ReadFile(filepath.Join(courseDir, "chapter_02_Practice.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "explaining Practice")

	out := stdout.String()
	assert.Contains(t, out, "saved  Foundations")
	assert.Contains(t, out, "saved  Practice")
	assert.Contains(t, out, "Chapters:  2")
	assert.Contains(t, out, "Failed:    0")
	assert.Contains(t, out, courseDir)

	led, err := ledger.Open(cfg.Ledger)
	require.NoError(t, err)
	defer led.Close()
	runs, err := led.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.RunCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Chapters)
	assert.Equal(t, "the whole course", runs[0].Summary)

	chapters, err := led.Chapters(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, filepath.Join(courseDir, "chapter_01_Foundations.md"), chapters[0].Path)
}

func TestGenerator_RunReportsFailedChapters(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = false
	var stdout bytes.Buffer
	g := &generator{cfg: cfg, stdout: &stdout, stderr: &bytes.Buffer{}, factory: scripted("Practice").Factory(nil)}

	err := g.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 chapter(s) failed")
	assert.Contains(t, stdout.String(), "FAILED Practice")
	assert.Contains(t, stdout.String(), "Failed:    1")
	assert.NotContains(t, stdout.String(), "Run:")
}

func TestGenerator_RunCustomPromptFromFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = false
	prompt := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("use many code samples\n"), 0o644))
	cfg.CustomPrompt = prompt

	client := scripted()
	g := &generator{cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, factory: client.Factory(nil)}
	require.NoError(t, g.run(context.Background()))

	for _, call := range client.CallsNamed("chapter") {
		assert.Equal(t, "use many code samples", call.Vars["custom_prompt"])
	}
}

func TestGenerator_RunInputFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = false
	cfg.InputText = ""
	cfg.InputPath = filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(cfg.InputPath, []byte("  file notes  "), 0o644))

	client := scripted()
	g := &generator{cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, factory: client.Factory(nil)}
	require.NoError(t, g.run(context.Background()))

	toc := client.CallsNamed("toc")
	require.Len(t, toc, 1)
	assert.Equal(t, "file notes", toc[0].Vars["content"])
}

func TestGenerator_RunErrors(t *testing.T) {
	t.Run("missing input file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.InputText = ""
		cfg.InputPath = filepath.Join(t.TempDir(), "missing.md")
		g := &generator{cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, factory: scripted().Factory(nil)}
		assert.ErrorIs(t, g.run(context.Background()), os.ErrNotExist)
	})

	t.Run("no api key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.LLM.APIKey = ""
		g := &generator{
			cfg:     cfg,
			stdout:  &bytes.Buffer{},
			stderr:  &bytes.Buffer{},
			factory: scripted().Factory(nil),
			resolver: secrets.Resolver{
				SecretsDir: t.TempDir(),
				EnvFile:    filepath.Join(t.TempDir(), ".env"),
				Getenv:     func(string) string { return "" },
			},
		}
		assert.ErrorIs(t, g.run(context.Background()), secrets.ErrNoAPIKey)
	})

	t.Run("toc failure marks the run failed", func(t *testing.T) {
		cfg := testConfig(t)
		client := &llmtest.ScriptedClient{Respond: func(llm.Request) (string, error) {
			return "", errors.New("quota exceeded")
		}}
		g := &generator{cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, factory: client.Factory(nil)}
		require.ErrorContains(t, g.run(context.Background()), "quota exceeded")

		led, err := ledger.Open(cfg.Ledger)
		require.NoError(t, err)
		defer led.Close()
		runs, err := led.ListRuns(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, ledger.RunFailed, runs[0].Status)
		assert.Contains(t, runs[0].Error, "quota exceeded")
	})
}

func TestFormatRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatRuns(&buf, nil))
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatRuns(&buf, []ledger.Run{{
		ID:        "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Title:     "Go Basics",
		Mode:      types.ModeCascade,
		Status:    ledger.RunCompleted,
		Chapters:  4,
		Failed:    1,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}))
	out := buf.String()
	assert.Contains(t, out, "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "cascade")
	assert.Contains(t, out, "1 runs")
}

func TestFormatHits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatHits(&buf, []ledger.Hit{{
		RunTitle: "Go Basics",
		Index:    1,
		Title:    "Practice",
		Snippet:  "...[goroutines]\nand channels...",
	}}))
	out := buf.String()
	assert.Contains(t, out, "Practice")
	assert.Contains(t, out, "[goroutines] and channels")
	assert.True(t, strings.HasSuffix(out, "1 results\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "机器学习...", truncate("机器学习基础与实践教程", 7))
}
