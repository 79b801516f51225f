// Package store provides a SQLite-backed transcript log. Every answered
// question is recorded with its conversation id, the final answer, and the
// number of retrieved contexts, so operators can review what the assistant
// said after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Transcript is one answered question.
type Transcript struct {
	// ConversationID is the id handed out at submission.
	ConversationID string
	// Question is the submitted question text.
	Question string
	// Answer is the full generated answer.
	Answer string
	// Contexts is the number of retrieved contexts used for the prompt.
	Contexts int
	// CreatedAt is when the transcript was persisted.
	CreatedAt time.Time
}

// TranscriptStore persists and lists transcripts. Implementations must be
// safe for concurrent use.
type TranscriptStore interface {
	// Append persists one transcript. CreatedAt is set by the store.
	Append(ctx context.Context, t Transcript) error
	// Recent returns the most recent n transcripts, newest first.
	Recent(ctx context.Context, n int) ([]Transcript, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a TranscriptStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ TranscriptStore = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the transcript database.
// It resolves to ~/.docchat/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transcripts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id  TEXT    NOT NULL,
    question         TEXT    NOT NULL,
    answer           TEXT    NOT NULL,
    contexts         INTEGER NOT NULL,
    created_at       INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_created
    ON transcripts (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists one transcript.
func (s *SQLiteStore) Append(ctx context.Context, t Transcript) error {
	const q = `INSERT INTO transcripts (conversation_id, question, answer, contexts, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, t.ConversationID, t.Question, t.Answer, t.Contexts, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n transcripts, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Transcript, error) {
	const q = `
SELECT conversation_id, question, answer, contexts, created_at
FROM   transcripts
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var t Transcript
		var ts int64
		if err := rows.Scan(&t.ConversationID, &t.Question, &t.Answer, &t.Contexts, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		t.CreatedAt = time.Unix(ts, 0)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
