// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of generation runs and the chapters
// they produced, with full-text search over chapter content.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/course-engine/pkg/types"
)

const (
	// DefaultDir holds the ledger database when none is configured.
	DefaultDir = ".course-engine"
	dbFile     = "ledger.db"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one generate invocation.
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	Title      string         `json:"title" yaml:"title"`
	Mode       types.Mode     `json:"mode" yaml:"mode"`
	Provider   types.Provider `json:"provider" yaml:"provider"`
	Model      string         `json:"model" yaml:"model"`
	OutputDir  string         `json:"output_dir" yaml:"output_dir"`
	Status     RunStatus      `json:"status" yaml:"status"`
	Chapters   int            `json:"chapters" yaml:"chapters"`
	Failed     int            `json:"failed" yaml:"failed"`
	Summary    string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Ledger wraps the run database.
type Ledger struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// Open opens or creates dir/ledger.db and its schema.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Chapter notifications arrive from several workers; one connection
	// serialises the writes.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dir: dir, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Dir returns the directory holding the database.
func (l *Ledger) Dir() string {
	return l.dir
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			mode TEXT,
			provider TEXT,
			model TEXT,
			output_dir TEXT,
			status TEXT NOT NULL,
			chapters INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			summary TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			title TEXT NOT NULL,
			summary TEXT,
			explanation TEXT,
			extension TEXT,
			path TEXT,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			UNIQUE(run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := l.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chapters_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE chapters_fts USING fts5(title, summary, explanation, extension, content=chapters, content_rowid=rowid)`,
		`CREATE TRIGGER chapters_ai AFTER INSERT ON chapters BEGIN
			INSERT INTO chapters_fts(rowid, title, summary, explanation, extension)
			VALUES (new.rowid, new.title, new.summary, new.explanation, new.extension);
		END`,
		`CREATE TRIGGER chapters_ad AFTER DELETE ON chapters BEGIN
			INSERT INTO chapters_fts(chapters_fts, rowid, title, summary, explanation, extension)
			VALUES ('delete', old.rowid, old.title, old.summary, old.explanation, old.extension);
		END`,
		`CREATE TRIGGER chapters_au AFTER UPDATE ON chapters BEGIN
			INSERT INTO chapters_fts(chapters_fts, rowid, title, summary, explanation, extension)
			VALUES ('delete', old.rowid, old.title, old.summary, old.explanation, old.extension);
			INSERT INTO chapters_fts(rowid, title, summary, explanation, extension)
			VALUES (new.rowid, new.title, new.summary, new.explanation, new.extension);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// StartRun inserts a running run and returns its generated ID.
func (l *Ledger) StartRun(ctx context.Context, r Run) (string, error) {
	r.ID = uuid.NewString()
	if r.StartedAt.IsZero() {
		r.StartedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, title, mode, provider, model, output_dir, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, string(r.Mode), string(r.Provider), r.Model, r.OutputDir,
		string(RunRunning), formatTime(r.StartedAt),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return r.ID, nil
}

// RecordChapter stores a chapter record, replacing any earlier record for
// the same index.
func (l *Ledger) RecordChapter(ctx context.Context, runID string, spec types.ChapterSpec, rec types.ChapterRecord, path string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO chapters (run_id, idx, title, summary, explanation, extension, path, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, idx) DO UPDATE SET
			title=excluded.title, summary=excluded.summary,
			explanation=excluded.explanation, extension=excluded.extension,
			path=excluded.path, failed=excluded.failed`,
		runID, spec.Index, rec.Title, rec.Summary, rec.Explanation, rec.Extension,
		path, boolInt(rec.IsError()),
	)
	if err != nil {
		return fmt.Errorf("recording chapter %d: %w", spec.Number(), err)
	}
	return nil
}

// RecordFailure marks a chapter as failed, keeping any content already stored.
func (l *Ledger) RecordFailure(ctx context.Context, runID string, spec types.ChapterSpec, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO chapters (run_id, idx, title, failed, error)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(run_id, idx) DO UPDATE SET failed=1, error=excluded.error`,
		runID, spec.Index, spec.Title, msg,
	)
	if err != nil {
		return fmt.Errorf("recording failure of chapter %d: %w", spec.Number(), err)
	}
	return nil
}

// FinishRun closes a run. A nil course or a non-nil runErr marks it failed.
func (l *Ledger) FinishRun(ctx context.Context, runID string, c *types.Course, runErr error) error {
	status := RunCompleted
	var (
		chapters, failed int
		summary, errMsg  string
	)
	if c != nil {
		chapters = len(c.Chapters)
		failed = c.FailedChapters()
		summary = c.Summary
	}
	if runErr != nil || c == nil {
		status = RunFailed
	}
	if runErr != nil {
		errMsg = runErr.Error()
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status=?, chapters=?, failed=?, summary=?, error=?, finished_at=?
		 WHERE id=?`,
		string(status), chapters, failed, summary, errMsg, formatTime(l.now()), runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
