// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/course-engine/pkg/types"
)

const defaultLimit = 20

// Chapter is a stored chapter row.
type Chapter struct {
	Index       int    `json:"index" yaml:"index"`
	Title       string `json:"title" yaml:"title"`
	Summary     string `json:"summary" yaml:"summary"`
	Explanation string `json:"explanation" yaml:"explanation"`
	Extension   string `json:"extension" yaml:"extension"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Failed      bool   `json:"failed" yaml:"failed"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Hit is one full-text search match.
type Hit struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	RunTitle string `json:"run_title" yaml:"run_title"`
	Index    int    `json:"index" yaml:"index"`
	Title    string `json:"title" yaml:"title"`
	Snippet  string `json:"snippet" yaml:"snippet"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// RunExport is a run with all of its chapters.
type RunExport struct {
	Run      Run       `json:"run" yaml:"run"`
	Chapters []Chapter `json:"chapters" yaml:"chapters"`
}

const runColumns = `id, title, mode, provider, model, output_dir, status,
	chapters, failed, summary, error, started_at, finished_at`

// ListRuns returns the most recent runs first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (l *Ledger) GetRun(ctx context.Context, runID string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Chapters returns a run's chapters in TOC order.
func (l *Ledger) Chapters(ctx context.Context, runID string) ([]Chapter, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT idx, title, summary, explanation, extension, path, failed, error
		 FROM chapters WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	chapters := []Chapter{}
	for rows.Next() {
		var (
			ch                                    Chapter
			summary, explanation, extension, path sql.NullString
			errMsg                                sql.NullString
			failed                                int
		)
		if err := rows.Scan(&ch.Index, &ch.Title, &summary, &explanation, &extension, &path, &failed, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		ch.Summary = summary.String
		ch.Explanation = explanation.String
		ch.Extension = extension.String
		ch.Path = path.String
		ch.Error = errMsg.String
		ch.Failed = failed != 0
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// Search runs an FTS5 query over chapter titles and content, best match first.
func (l *Ledger) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT c.run_id, r.title, c.idx, c.title,
			snippet(chapters_fts, -1, '[', ']', '...', 12), c.path
		 FROM chapters_fts
		 JOIN chapters c ON c.rowid = chapters_fts.rowid
		 JOIN runs r ON r.id = c.run_id
		 WHERE chapters_fts MATCH ?
		 ORDER BY chapters_fts.rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chapters: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			path sql.NullString
		)
		if err := rows.Scan(&h.RunID, &h.RunTitle, &h.Index, &h.Title, &h.Snippet, &path); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Path = path.String
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Export loads a run and its chapters.
func (l *Ledger) Export(ctx context.Context, runID string) (RunExport, error) {
	r, err := l.GetRun(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	chapters, err := l.Chapters(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	return RunExport{Run: r, Chapters: chapters}, nil
}

// WriteYAML encodes e as YAML.
func WriteYAML(w io.Writer, e RunExport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// WriteJSON encodes e as indented JSON.
func WriteJSON(w io.Writer, e RunExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                             Run
		mode, provider, model, outDir sql.NullString
		status                        string
		summary, errMsg               sql.NullString
		startedAt, finishedAt         sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Title, &mode, &provider, &model, &outDir, &status,
		&r.Chapters, &r.Failed, &summary, &errMsg, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.Mode = types.Mode(mode.String)
	r.Provider = types.Provider(provider.String)
	r.Model = model.String
	r.OutputDir = outDir.String
	r.Status = RunStatus(status)
	r.Summary = summary.String
	r.Error = errMsg.String
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTime(finishedAt)
	return r, nil
}
