// Package store provides the relational persistence layer for sessions,
// prompts, observations, and summaries.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is the relational store. It owns a single long-lived writer
// connection for its lifetime; readers may run concurrently against the
// same *sql.DB under WAL mode.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serializes writes, per spec.md §5's single-writer discipline
}

// Open opens (creating if absent) the relational store at path and applies
// the schema. Pass ":memory:" for an ephemeral store, used by tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_session_id TEXT NOT NULL UNIQUE,
		memory_session_id TEXT,
		project TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		started_at INTEGER NOT NULL,
		user_prompt TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project);
	CREATE INDEX IF NOT EXISTS idx_sessions_memory_session_id ON sessions(memory_session_id);

	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		memory_session_id TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'discovery',
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		narrative TEXT NOT NULL DEFAULT '',
		facts TEXT NOT NULL DEFAULT '[]',
		concepts TEXT NOT NULL DEFAULT '[]',
		files_read TEXT NOT NULL DEFAULT '[]',
		files_modified TEXT NOT NULL DEFAULT '[]',
		prompt_number INTEGER NOT NULL DEFAULT 0,
		created_at_epoch INTEGER NOT NULL,
		UNIQUE(memory_session_id, title, created_at_epoch)
	);
	CREATE INDEX IF NOT EXISTS idx_observations_project ON observations(project);
	CREATE INDEX IF NOT EXISTS idx_observations_memory_session_id ON observations(memory_session_id);

	CREATE TABLE IF NOT EXISTS session_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		memory_session_id TEXT NOT NULL UNIQUE,
		request TEXT NOT NULL DEFAULT '',
		investigated TEXT NOT NULL DEFAULT '',
		learned TEXT NOT NULL DEFAULT '',
		completed TEXT NOT NULL DEFAULT '',
		next_steps TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at_epoch INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_prompts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_session_id TEXT NOT NULL,
		prompt_number INTEGER NOT NULL,
		prompt_text TEXT NOT NULL,
		created_at_epoch INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_user_prompts_content_session_id ON user_prompts(content_session_id);

	CREATE TABLE IF NOT EXISTS pending_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		type TEXT NOT NULL,
		tool_name TEXT NOT NULL DEFAULT '',
		tool_input TEXT NOT NULL DEFAULT '{}',
		tool_response TEXT NOT NULL DEFAULT '{}',
		prompt_number INTEGER NOT NULL DEFAULT 0,
		cwd TEXT NOT NULL DEFAULT '',
		last_assistant_message TEXT NOT NULL DEFAULT '',
		enqueued_at INTEGER NOT NULL,
		processed_at INTEGER,
		in_flight INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pending_messages_session_id ON pending_messages(session_id, enqueued_at);

	CREATE TABLE IF NOT EXISTS vector_documents (
		id TEXT PRIMARY KEY,
		sqlite_id INTEGER NOT NULL,
		doc_type TEXT NOT NULL,
		content TEXT NOT NULL,
		memory_session_id TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		created_at_epoch INTEGER NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_vector_documents_project ON vector_documents(project);
	CREATE INDEX IF NOT EXISTS idx_vector_documents_memory_session_id ON vector_documents(memory_session_id);
	CREATE INDEX IF NOT EXISTS idx_vector_documents_sqlite_id ON vector_documents(sqlite_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for components that need direct access
// (the embedded vector backend shares this same SQLite file when configured
// for "sqlite-vec").
func (s *Store) DB() *sql.DB {
	return s.db
}
