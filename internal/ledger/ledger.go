// Package ledger keeps a SQLite history of the clusters named by each run.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DirName is the per-parent state directory.
const DirName = ".tagcluster"

// DefaultPath returns the ledger location inside parent.
func DefaultPath(parent string) string {
	return filepath.Join(parent, DirName, "ledger.db")
}

var schema = []string{`CREATE TABLE IF NOT EXISTS clusters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    subfolder TEXT NOT NULL,
    axis TEXT NOT NULL,
    name TEXT NOT NULL,
    prompt TEXT NOT NULL,
    members INTEGER NOT NULL,
    source TEXT NOT NULL,
    sheet TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_clusters_created ON clusters(created_at)`,
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one named cluster of one run.
type Entry struct {
	RunID     string
	Subfolder string
	Axis      string
	Name      string
	Prompt    []string
	Members   int
	// Source is how the name was decided, e.g. "placeholder" or "reviewer".
	Source    string
	// Sheet is the contact sheet a reviewer decided on, "" otherwise.
	Sheet     string
	CreatedAt time.Time
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create ledger schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordClusters inserts entries in one transaction.
func (s *Store) RecordClusters(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO clusters (
        run_id, subfolder, axis, name, prompt, members, source, sheet, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			e.RunID, e.Subfolder, e.Axis, e.Name, strings.Join(e.Prompt, ", "),
			e.Members, e.Source, e.Sheet, created.UTC().Format(timeLayout),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, subfolder, axis, name, prompt, members, source, sheet, created_at
        FROM clusters ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var prompt, created string
		if err := rows.Scan(&e.RunID, &e.Subfolder, &e.Axis, &e.Name, &prompt, &e.Members, &e.Source, &e.Sheet, &created); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if prompt != "" {
			e.Prompt = strings.Split(prompt, ", ")
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse ledger time %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
