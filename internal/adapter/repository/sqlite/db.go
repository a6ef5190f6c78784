// Package sqlite is the device-local ledger store: a single sqlite file
// behind database/sql with serialized writes and embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bolsoapp/bolso/internal/domain"
)

// Store owns the single shared connection to the ledger file. Opening is
// lazy and guarded so concurrent first accesses cannot race to create the
// schema twice.
type Store struct {
	path string

	mu     sync.Mutex
	opened bool
	db     *sql.DB
	writes sync.Mutex
}

// NewStore creates a store for the given file path without opening it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location, for the backup manager.
func (s *Store) Path() string { return s.path }

// DB opens the database on first use, creating the directory, applying
// pragmas and running migrations.
func (s *Store) DB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return s.db, nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrPersistence, err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open ledger: %v", domain.ErrPersistence, err)
	}

	// One writer at a time; the writes mutex serializes transactions above
	// this connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrPersistence, pragma, err)
		}
	}

	if err := runMigrations(s.path); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.opened = true
	return s.db, nil
}

// Close tears the store down. Further DB calls reopen it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.opened = false
	err := s.db.Close()
	s.db = nil
	return err
}

// executor is the subset of database/sql shared by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout stores timestamps in UTC with fixed-width nanoseconds so the
// TEXT column's lexicographic order matches chronological order and SQL
// range filters stay correct.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse time %q: %v", domain.ErrPersistence, s, err)
	}
	return t, nil
}
