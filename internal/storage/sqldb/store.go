// Package sqldb is a SQL implementation of storage.Store supporting SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqldb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/storage"
	"github.com/tjfontaine/robin-backend/internal/storage/dialect"
)

// Store implements storage.Store on top of sqlx.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.Store = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New opens the database, applies dialect pragmas and creates the schema.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// Wrap builds a Store over an existing connection without touching the schema.
func Wrap(db *sqlx.DB, d dialect.Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	ts := s.dialect.TimestampType()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
id TEXT PRIMARY KEY,
user_id TEXT NOT NULL DEFAULT '',
name TEXT NOT NULL,
description TEXT NOT NULL DEFAULT '',
stack TEXT NOT NULL DEFAULT '[]',
created_at ` + ts + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS project_files (
id TEXT PRIMARY KEY,
project_id TEXT NOT NULL,
path TEXT NOT NULL,
content TEXT NOT NULL,
last_modified ` + ts + ` NOT NULL,
UNIQUE (project_id, path)
)`,
		`CREATE TABLE IF NOT EXISTS canvas_files (
id TEXT PRIMARY KEY,
chat_id TEXT NOT NULL,
path TEXT NOT NULL,
content TEXT NOT NULL,
version_number INTEGER NOT NULL DEFAULT 1,
metadata TEXT NOT NULL DEFAULT '{}',
last_modified ` + ts + ` NOT NULL,
UNIQUE (chat_id, path)
)`,
		`CREATE TABLE IF NOT EXISTS canvas_file_versions (
id TEXT PRIMARY KEY,
canvas_file_id TEXT NOT NULL,
version_number INTEGER NOT NULL,
content TEXT NOT NULL,
created_at ` + ts + ` NOT NULL,
UNIQUE (canvas_file_id, version_number)
)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
id TEXT PRIMARY KEY,
chat_id TEXT NOT NULL,
artifact_type TEXT NOT NULL,
title TEXT NOT NULL DEFAULT '',
data TEXT NOT NULL,
message_id TEXT,
created_at ` + ts + ` NOT NULL,
last_modified ` + ts + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS playground_chats (
id TEXT PRIMARY KEY,
user_id TEXT NOT NULL,
title TEXT NOT NULL DEFAULT '',
created_at ` + ts + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
id TEXT PRIMARY KEY,
chat_id TEXT NOT NULL,
sender TEXT NOT NULL,
message_type TEXT NOT NULL DEFAULT 'text',
content TEXT NOT NULL,
attached_files TEXT,
tool_results TEXT,
thoughts TEXT,
sent_at ` + ts + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_chat ON artifacts(chat_id, last_modified)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_versions_file ON canvas_file_versions(canvas_file_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// mapWriteErr turns driver uniqueness failures into domain.ErrAlreadyExists.
func (s *Store) mapWriteErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrAlreadyExists)
	}
	return fmt.Errorf("failed to write %s: %w", what, err)
}

// expectRows returns domain.ErrNotFound when an update or delete touched nothing.
func expectRows(res interface{ RowsAffected() (int64, error) }, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}
