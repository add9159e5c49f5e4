// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const chatColumns = `id, other_user_id, other_username, last_message, last_message_at, unread_count, cached_at`

// UpsertChat inserts or replaces a cached chat summary.
func (s *Store) UpsertChat(ctx context.Context, c *CachedChat) error {
	if c.CachedAt.IsZero() {
		c.CachedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT OR REPLACE INTO cached_chats (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OtherUserID, c.OtherUsername, c.LastMessage, toMillis(c.LastMessageAt), c.UnreadCount, toMillis(c.CachedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert chat %s: %w", c.ID, err)
	}
	return nil
}

// GetChat loads a cached chat by id.
func (s *Store) GetChat(ctx context.Context, id string) (*CachedChat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM cached_chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat %s: %w", id, err)
	}
	return c, nil
}

// Chats returns all cached chats, most recently active first.
func (s *Store) Chats(ctx context.Context) ([]*CachedChat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chatColumns+` FROM cached_chats ORDER BY last_message_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var out []*CachedChat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat and its cached messages.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_messages WHERE chat_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete messages of chat %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_chats WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete chat %s: %w", id, err)
		}
		return nil
	})
}

func scanChat(row rowScanner) (*CachedChat, error) {
	var c CachedChat
	var lastAt, cachedAt int64
	if err := row.Scan(&c.ID, &c.OtherUserID, &c.OtherUsername, &c.LastMessage, &lastAt, &c.UnreadCount, &cachedAt); err != nil {
		return nil, err
	}
	c.LastMessageAt = fromMillis(lastAt)
	c.CachedAt = fromMillis(cachedAt)
	return &c, nil
}
