// Package history records run summaries in a local SQLite database so
// past generations can be listed and reopened.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/storyforge/internal/model"
)

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	use_case TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	steps INTEGER NOT NULL DEFAULT 0,
	locators INTEGER NOT NULL DEFAULT 0,
	scenarios INTEGER NOT NULL DEFAULT 0,
	test_file TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize runs schema: %w", err)
	}

	return &Store{db: db}, nil
}

// openDB opens SQLite with standard pragmas (WAL mode, busy timeout).
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record is one persisted run.
type Record struct {
	RunID      string
	URL        string
	UseCase    string
	Status     model.RunStatus
	Stage      string
	Detail     string
	Steps      int
	Locators   int
	Scenarios  int
	TestFile   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// FromState builds the record for a finished run. testFile names the
// generated test artifact, empty when the run failed before emission.
func FromState(state model.RunState, testFile string) Record {
	r := Record{
		RunID:      state.RunID,
		URL:        state.URL,
		UseCase:    state.UseCase,
		Status:     state.Status(),
		Steps:      state.Journey.Len(),
		Locators:   len(state.Locators),
		Scenarios:  len(state.Scenarios),
		TestFile:   testFile,
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
	}
	if state.StageError != nil {
		r.Stage = state.StageError.Stage
		r.Detail = state.StageError.Detail
	}
	return r
}

// Save inserts or updates the record for its run ID.
func (s *Store) Save(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, url, use_case, status, stage, detail, steps, locators, scenarios, test_file, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		 status = excluded.status,
		 stage = excluded.stage,
		 detail = excluded.detail,
		 steps = excluded.steps,
		 locators = excluded.locators,
		 scenarios = excluded.scenarios,
		 test_file = excluded.test_file,
		 finished_at = excluded.finished_at`,
		r.RunID, r.URL, r.UseCase, string(r.Status), r.Stage, r.Detail,
		r.Steps, r.Locators, r.Scenarios, r.TestFile,
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	return nil
}

// Get loads one run by ID.
func (s *Store) Get(runID string) (Record, bool, error) {
	row := s.db.QueryRow(
		`SELECT run_id, url, use_case, status, stage, detail, steps, locators, scenarios, test_file, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID)

	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("query run %s: %w", runID, err)
	}
	return r, true, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, url, use_case, status, stage, detail, steps, locators, scenarios, test_file, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var status, started, finished string
	if err := row.Scan(&r.RunID, &r.URL, &r.UseCase, &status, &r.Stage, &r.Detail,
		&r.Steps, &r.Locators, &r.Scenarios, &r.TestFile, &started, &finished); err != nil {
		return Record{}, err
	}
	r.Status = model.RunStatus(status)
	if t, err := time.Parse(time.RFC3339, started); err == nil {
		r.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, finished); err == nil {
		r.FinishedAt = t
	}
	return r, nil
}
