// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const messageColumns = `id, chat_id, sender_id, receiver_id, text, image_url, local_image_path, timestamp, is_sent, cached_at`

const upsertMessageSQL = `
	INSERT OR REPLACE INTO cached_messages (` + messageColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertMessage inserts or replaces a cached message.
func (s *Store) UpsertMessage(ctx context.Context, m *CachedMessage) error {
	return s.UpsertMessages(ctx, []*CachedMessage{m})
}

// UpsertMessages inserts or replaces a batch of messages in one transaction.
func (s *Store) UpsertMessages(ctx context.Context, msgs []*CachedMessage) error {
	cachedAt := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range msgs {
			if m.CachedAt.IsZero() {
				m.CachedAt = cachedAt
			}
			if _, err := tx.ExecContext(ctx, upsertMessageSQL,
				m.ID, m.ChatID, m.SenderID, m.ReceiverID, m.Text, m.ImageURL, m.LocalImagePath,
				toMillis(m.Timestamp), boolToInt(m.IsSent), toMillis(m.CachedAt),
			); err != nil {
				return fmt.Errorf("failed to upsert message %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

// GetMessage loads a cached message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (*CachedMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM cached_messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message %s: %w", id, err)
	}
	return m, nil
}

// MessagesByChat returns the messages of a chat in ascending time order.
// A limit <= 0 returns all of them.
func (s *Store) MessagesByChat(ctx context.Context, chatID string, limit int) ([]*CachedMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM cached_messages
			WHERE chat_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp, id
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var out []*CachedMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a cached message.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM cached_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

// DeletePendingMessages removes the locally generated messages of a chat. The
// server copies replace them on the next fetch.
func (s *Store) DeletePendingMessages(ctx context.Context, chatID string) (int64, error) {
	res, err := s.exec(ctx, `
		DELETE FROM cached_messages
		WHERE chat_id = ? AND substr(id, 1, ?) = ?
	`, chatID, len(PendingPrefix), PendingPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending messages for chat %s: %w", chatID, err)
	}
	return res.RowsAffected()
}

func scanMessage(row rowScanner) (*CachedMessage, error) {
	var (
		m            CachedMessage
		ts, cachedAt int64
		isSent       int
	)
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.ImageURL,
		&m.LocalImagePath, &ts, &isSent, &cachedAt); err != nil {
		return nil, err
	}
	m.Timestamp = fromMillis(ts)
	m.IsSent = isSent == 1
	m.CachedAt = fromMillis(cachedAt)
	return &m, nil
}
