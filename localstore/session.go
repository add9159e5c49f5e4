// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRecord is the persisted credential of the signed-in user.
type SessionRecord struct {
	UserID  string
	Token   string
	SavedAt time.Time
}

// SaveSession stores the credential, replacing any previous one.
func (s *Store) SaveSession(ctx context.Context, userID, token string) error {
	_, err := s.exec(ctx, `
		INSERT OR REPLACE INTO session (id, user_id, token, saved_at) VALUES (1, ?, ?, ?)
	`, userID, token, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored credential or ErrNotFound.
func (s *Store) LoadSession(ctx context.Context) (*SessionRecord, error) {
	var rec SessionRecord
	var savedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id, token, saved_at FROM session WHERE id = 1`).
		Scan(&rec.UserID, &rec.Token, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	rec.SavedAt = fromMillis(savedAt)
	return &rec, nil
}

// ClearSession removes the stored credential.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.exec(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
