// Package runarchive records terminal runs in a SQLite database so later
// runs can query prior premises for the novelty check and operators can
// list historical runs without walking the logs root.
package runarchive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caseforge/moriarty/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	clean         INTEGER NOT NULL DEFAULT 0,
	title         TEXT,
	premise       TEXT,
	failure_class TEXT,
	revised       INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	warnings_json TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at DESC);
`

// Entry is one archived run row.
type Entry struct {
	RunID        string
	Status       string
	Clean        bool
	Title        string
	Premise      string
	FailureClass string
	Revised      bool
	CostUSD      float64
	Warnings     []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Archive is the terminal-run record store.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive database at path, creating the
// parent directory if needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// Record inserts or replaces the terminal record for a run.
func (a *Archive) Record(ctx context.Context, res *pipeline.Result) error {
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
(run_id, status, clean, title, premise, failure_class, revised, cost_usd, warnings_json, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		res.Status,
		boolInt(res.Clean),
		res.Title,
		res.Premise,
		string(res.FailureClass),
		boolInt(res.Revised),
		res.TotalCostUSD,
		string(warnings),
		res.StartedAt.UTC().Format(time.RFC3339),
		res.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}
	return nil
}

// RecentPremises returns the premises of the most recent completed runs,
// newest first; this is the novelty check's comparison corpus.
func (a *Archive) RecentPremises(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
SELECT premise FROM runs
WHERE status = ? AND premise IS NOT NULL AND premise != ''
ORDER BY finished_at DESC LIMIT ?`, pipeline.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("query premises: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns the most recent runs, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
SELECT run_id, status, clean, title, premise, failure_class, revised, cost_usd, warnings_json, started_at, finished_at
FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one archived run, or (zero, false) when absent.
func (a *Archive) Get(ctx context.Context, runID string) (Entry, bool, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT run_id, status, clean, title, premise, failure_class, revised, cost_usd, warnings_json, started_at, finished_at
FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return Entry{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return Entry{}, false, rows.Err()
	}
	e, err := scanEntry(rows)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var clean, revised int
	var title, premise, class, warningsJSON sql.NullString
	var startedRaw, finishedRaw string
	err := rows.Scan(&e.RunID, &e.Status, &clean, &title, &premise, &class,
		&revised, &e.CostUSD, &warningsJSON, &startedRaw, &finishedRaw)
	if err != nil {
		return Entry{}, err
	}
	e.Clean = clean != 0
	e.Revised = revised != 0
	e.Title = title.String
	e.Premise = premise.String
	e.FailureClass = class.String
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &e.Warnings); err != nil {
			return Entry{}, fmt.Errorf("decode warnings for %s: %w", e.RunID, err)
		}
	}
	if t, err := time.Parse(time.RFC3339, startedRaw); err == nil {
		e.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, finishedRaw); err == nil {
		e.FinishedAt = t
	}
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
