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

const storyColumns = `id, user_id, username, media_url, media_type, local_media_path, close_friends_only, uploaded_at, expires_at, is_sent, cached_at`

const upsertStorySQL = `
	INSERT OR REPLACE INTO cached_stories (` + storyColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertStory inserts or replaces a cached story.
func (s *Store) UpsertStory(ctx context.Context, st *CachedStory) error {
	return s.UpsertStories(ctx, []*CachedStory{st})
}

// UpsertStories inserts or replaces a batch of stories in one transaction.
func (s *Store) UpsertStories(ctx context.Context, stories []*CachedStory) error {
	cachedAt := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, st := range stories {
			if st.CachedAt.IsZero() {
				st.CachedAt = cachedAt
			}
			if _, err := tx.ExecContext(ctx, upsertStorySQL,
				st.ID, st.UserID, st.Username, st.MediaURL, st.MediaType, st.LocalMediaPath,
				boolToInt(st.CloseFriendsOnly), toMillis(st.UploadedAt), toMillis(st.ExpiresAt),
				boolToInt(st.IsSent), toMillis(st.CachedAt),
			); err != nil {
				return fmt.Errorf("failed to upsert story %s: %w", st.ID, err)
			}
		}
		return nil
	})
}

// GetStory loads a cached story by id.
func (s *Store) GetStory(ctx context.Context, id string) (*CachedStory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM cached_stories WHERE id = ?`, id)
	st, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query story %s: %w", id, err)
	}
	return st, nil
}

// ActiveStories returns stories that have not expired at now, grouped by user and
// newest first within each user.
func (s *Store) ActiveStories(ctx context.Context, now time.Time) ([]*CachedStory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storyColumns+` FROM cached_stories
		WHERE expires_at > ?
		ORDER BY user_id, uploaded_at DESC, id
	`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query active stories: %w", err)
	}
	defer rows.Close()

	var out []*CachedStory
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteStory removes a cached story.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM cached_stories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	return nil
}

// DeleteExpiredStories removes stories whose expiry is at or before now.
func (s *Store) DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM cached_stories WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}
	return res.RowsAffected()
}

func scanStory(row rowScanner) (*CachedStory, error) {
	var (
		st                              CachedStory
		closeFriends, isSent            int
		uploadedAt, expiresAt, cachedAt int64
	)
	if err := row.Scan(&st.ID, &st.UserID, &st.Username, &st.MediaURL, &st.MediaType, &st.LocalMediaPath,
		&closeFriends, &uploadedAt, &expiresAt, &isSent, &cachedAt); err != nil {
		return nil, err
	}
	st.CloseFriendsOnly = closeFriends == 1
	st.IsSent = isSent == 1
	st.UploadedAt = fromMillis(uploadedAt)
	st.ExpiresAt = fromMillis(expiresAt)
	st.CachedAt = fromMillis(cachedAt)
	return &st, nil
}
