// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const postColumns = `id, user_id, username, caption, image_urls, local_image_paths, likes_count, comments_count, is_liked, is_saved, timestamp, is_sent, cached_at`

const upsertPostSQL = `
	INSERT OR REPLACE INTO cached_posts (` + postColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertPost inserts or replaces a cached post.
func (s *Store) UpsertPost(ctx context.Context, p *CachedPost) error {
	return s.UpsertPosts(ctx, []*CachedPost{p})
}

// UpsertPosts inserts or replaces a batch of posts in one transaction.
func (s *Store) UpsertPosts(ctx context.Context, posts []*CachedPost) error {
	cachedAt := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range posts {
			urls, err := encodeStrings(p.ImageURLs)
			if err != nil {
				return err
			}
			paths, err := encodeStrings(p.LocalImagePaths)
			if err != nil {
				return err
			}
			if p.CachedAt.IsZero() {
				p.CachedAt = cachedAt
			}
			if _, err := tx.ExecContext(ctx, upsertPostSQL,
				p.ID, p.UserID, p.Username, p.Caption, urls, paths, p.LikesCount, p.CommentsCount,
				boolToInt(p.IsLiked), boolToInt(p.IsSaved), toMillis(p.Timestamp), boolToInt(p.IsSent),
				toMillis(p.CachedAt),
			); err != nil {
				return fmt.Errorf("failed to upsert post %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// GetPost loads a cached post by id.
func (s *Store) GetPost(ctx context.Context, id string) (*CachedPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM cached_posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post %s: %w", id, err)
	}
	return p, nil
}

// RecentPosts returns up to limit posts, newest first.
func (s *Store) RecentPosts(ctx context.Context, limit int) ([]*CachedPost, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM cached_posts
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent posts: %w", err)
	}
	defer rows.Close()

	var out []*CachedPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePost removes a cached post.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM cached_posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return nil
}

// DeletePostsCachedBefore evicts posts cached before cutoff.
func (s *Store) DeletePostsCachedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM cached_posts WHERE cached_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to evict cached posts: %w", err)
	}
	return res.RowsAffected()
}

func scanPost(row rowScanner) (*CachedPost, error) {
	var (
		p                CachedPost
		urls, paths      string
		isLiked, isSaved int
		isSent           int
		ts, cachedAt     int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.Caption, &urls, &paths, &p.LikesCount,
		&p.CommentsCount, &isLiked, &isSaved, &ts, &isSent, &cachedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &p.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to decode image urls: %w", err)
	}
	if err := json.Unmarshal([]byte(paths), &p.LocalImagePaths); err != nil {
		return nil, fmt.Errorf("failed to decode local image paths: %w", err)
	}
	p.IsLiked = isLiked == 1
	p.IsSaved = isSaved == 1
	p.IsSent = isSent == 1
	p.Timestamp = fromMillis(ts)
	p.CachedAt = fromMillis(cachedAt)
	return &p, nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(data), nil
}
