// Package sqlite implements [relay.ConversationStore] on SQLite.
//
// One Store is opened at startup and shared by every request for the life of
// the process. Timestamps are stored as Unix milliseconds. The pool is capped
// at one connection, so statements from concurrent requests are serialized
// and a transaction is never interleaved with another writer.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Interface compliance check.
var _ relay.ConversationStore = (*Store)(nil)

// Store is a SQLite-backed conversation store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithClock sets the time source used for new sessions and messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens the database at dsn and applies the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DSNForFile returns a DSN for a database file with WAL journaling, a busy
// timeout and foreign-key enforcement.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS sessions_by_updated ON sessions(updated_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS messages_by_session ON messages(session_id, timestamp_ms, id);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

// timestamp returns the store clock truncated to the stored precision.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
