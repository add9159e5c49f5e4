// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package localstore is the durable on-device store: the pending-action log plus
// cached mirrors of messages, posts, stories and chats. Every exported operation is
// atomic; callers treat cache failures as advisory and keep going.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrNotClaimable is returned when an action is not in a state that allows the
	// requested transition (e.g. claiming an action that is already processing).
	ErrNotClaimable = errors.New("action not claimable")
)

// Store wraps the SQLite database holding the pending-action log and the cache.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	// Serialize writes; SQLite allows a single writer.
	writeMu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the store at path (":memory:" is accepted) and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: keeps ":memory:" databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := initializeDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying database for diagnostics and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

func initializeDatabase(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS pending_actions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			action_type     TEXT NOT NULL,
			payload         TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending'
			                CHECK (status IN ('pending','processing','completed','failed')),
			retry_count     INTEGER NOT NULL DEFAULT 0,
			timestamp       INTEGER NOT NULL, -- unix millis at enqueue
			updated_at      INTEGER NOT NULL, -- unix millis of last transition
			error_message   TEXT,
			idempotency_key TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_actions_status_ts
			ON pending_actions (status, timestamp, id)`,

		`CREATE TABLE IF NOT EXISTS cached_messages (
			id               TEXT PRIMARY KEY, -- server id or pending_<uuid>
			chat_id          TEXT NOT NULL,
			sender_id        TEXT NOT NULL,
			receiver_id      TEXT NOT NULL,
			text             TEXT NOT NULL DEFAULT '',
			image_url        TEXT NOT NULL DEFAULT '',
			local_image_path TEXT NOT NULL DEFAULT '',
			timestamp        INTEGER NOT NULL,
			is_sent          INTEGER NOT NULL DEFAULT 1,
			cached_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_messages_chat
			ON cached_messages (chat_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS cached_posts (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			username          TEXT NOT NULL DEFAULT '',
			caption           TEXT NOT NULL DEFAULT '',
			image_urls        TEXT NOT NULL DEFAULT '[]', -- JSON array
			local_image_paths TEXT NOT NULL DEFAULT '[]', -- JSON array
			likes_count       INTEGER NOT NULL DEFAULT 0,
			comments_count    INTEGER NOT NULL DEFAULT 0,
			is_liked          INTEGER NOT NULL DEFAULT 0,
			is_saved          INTEGER NOT NULL DEFAULT 0,
			timestamp         INTEGER NOT NULL,
			is_sent           INTEGER NOT NULL DEFAULT 1,
			cached_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_posts_ts ON cached_posts (timestamp)`,

		`CREATE TABLE IF NOT EXISTS cached_stories (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL,
			username           TEXT NOT NULL DEFAULT '',
			media_url          TEXT NOT NULL DEFAULT '',
			media_type         TEXT NOT NULL DEFAULT 'image',
			local_media_path   TEXT NOT NULL DEFAULT '',
			close_friends_only INTEGER NOT NULL DEFAULT 0,
			uploaded_at        INTEGER NOT NULL,
			expires_at         INTEGER NOT NULL,
			is_sent            INTEGER NOT NULL DEFAULT 1,
			cached_at          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_stories_expiry ON cached_stories (expires_at)`,

		`CREATE TABLE IF NOT EXISTS cached_chats (
			id              TEXT PRIMARY KEY,
			other_user_id   TEXT NOT NULL,
			other_username  TEXT NOT NULL DEFAULT '',
			last_message    TEXT NOT NULL DEFAULT '',
			last_message_at INTEGER NOT NULL DEFAULT 0,
			unread_count    INTEGER NOT NULL DEFAULT 0,
			cached_at       INTEGER NOT NULL
		)`,

		// Signed-in credential (one row)
		`CREATE TABLE IF NOT EXISTS session (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			user_id  TEXT NOT NULL,
			token    TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a write transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// exec runs a single write statement under the write lock.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.ExecContext(ctx, query, args...)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}
