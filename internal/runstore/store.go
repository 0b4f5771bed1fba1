// Package runstore records CLI invocations in a local SQLite database so the
// history command can show what was run, when, and how it ended.
package runstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitre-go/internal/gitre"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements gitre.RunStore over SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the run database at path and migrates it
// to the latest schema. ":memory:" gives an in-memory store for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating run database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating run database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// CreateRun records the start of an operation and returns its id.
func (s *Store) CreateRun(operation, parameters string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (operation, parameters, status, started_at) VALUES (?, ?, ?, ?)",
		operation, parameters, "running", time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating run record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	return id, nil
}

// FinishRun marks a run finished with the given status.
func (s *Store) FinishRun(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run record: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]gitre.Run, error) {
	rows, err := s.db.Query(
		"SELECT id, operation, parameters, status, started_at, finished_at FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []gitre.Run
	for rows.Next() {
		var run gitre.Run
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Operation, &run.Parameters, &run.Status, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// Path returns the database file path (or ":memory:").
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ gitre.RunStore = (*Store)(nil)
