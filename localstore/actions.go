// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daniyalkhawar366/socialsync/action"
	"github.com/google/uuid"
)

const actionColumns = `id, action_type, payload, status, retry_count, timestamp, updated_at, error_message, idempotency_key`

// Enqueue appends p to the pending-action log under a fresh idempotency key and
// returns the stored action.
func (s *Store) Enqueue(ctx context.Context, p action.Payload) (*action.PendingAction, error) {
	return s.EnqueueWithKey(ctx, p, uuid.New().String())
}

// EnqueueWithKey is Enqueue with a caller-chosen idempotency key, used when a write
// was already attempted inline under that key.
func (s *Store) EnqueueWithKey(ctx context.Context, p action.Payload, key string) (*action.PendingAction, error) {
	if key == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	data, err := action.Encode(p)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &action.PendingAction{
		Type:           p.ActionType(),
		Payload:        data,
		Status:         action.StatusPending,
		Timestamp:      now,
		UpdatedAt:      now,
		IdempotencyKey: key,
	}

	res, err := s.exec(ctx, `
		INSERT INTO pending_actions (action_type, payload, status, retry_count, timestamp, updated_at, idempotency_key)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, string(a.Type), string(a.Payload), string(a.Status), toMillis(now), toMillis(now), a.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pending action: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read pending action id: %w", err)
	}
	return a, nil
}

// GetAction loads one action by id.
func (s *Store) GetAction(ctx context.Context, id int64) (*action.PendingAction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM pending_actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("action %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query action %d: %w", id, err)
	}
	return a, nil
}

// PendingActions returns every pending action, oldest first. Actions enqueued in
// the same millisecond keep insertion order.
func (s *Store) PendingActions(ctx context.Context) ([]*action.PendingAction, error) {
	return s.ActionsByStatus(ctx, action.StatusPending)
}

// ActionsByStatus returns all actions in the given state, oldest first.
func (s *Store) ActionsByStatus(ctx context.Context, status action.Status) ([]*action.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM pending_actions
		WHERE status = ?
		ORDER BY timestamp, id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s actions: %w", status, err)
	}
	defer rows.Close()

	var out []*action.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of actions per state. States with no actions
// are reported as zero.
func (s *Store) CountByStatus(ctx context.Context) (map[action.Status]int, error) {
	counts := map[action.Status]int{
		action.StatusPending:    0,
		action.StatusProcessing: 0,
		action.StatusCompleted:  0,
		action.StatusFailed:     0,
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM pending_actions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan action count: %w", err)
		}
		counts[action.Status(status)] = n
	}
	return counts, rows.Err()
}

// ClaimAction moves a pending action to processing. It returns ErrNotClaimable when
// the action is not pending, so two drains can never hold the same action.
func (s *Store) ClaimAction(ctx context.Context, id int64) error {
	return s.transition(ctx, id, `
		UPDATE pending_actions SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, toMillis(s.now()), id)
}

// CompleteAction marks a processing action completed and clears its error.
func (s *Store) CompleteAction(ctx context.Context, id int64) error {
	return s.transition(ctx, id, `
		UPDATE pending_actions SET status = 'completed', error_message = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, toMillis(s.now()), id)
}

// ReleaseAction returns a processing action to pending after a failed attempt,
// recording reason and incrementing its retry count.
func (s *Store) ReleaseAction(ctx context.Context, id int64, reason string) error {
	return s.transition(ctx, id, `
		UPDATE pending_actions
		SET status = 'pending', retry_count = retry_count + 1, error_message = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, reason, toMillis(s.now()), id)
}

// FailAction marks a non-terminal action as terminally failed.
func (s *Store) FailAction(ctx context.Context, id int64, reason string) error {
	return s.transition(ctx, id, `
		UPDATE pending_actions SET status = 'failed', error_message = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')
	`, reason, toMillis(s.now()), id)
}

func (s *Store) transition(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for action %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("action %d: %w", id, ErrNotClaimable)
	}
	return nil
}

// RecoverStuck returns actions that have been processing since before cutoff to
// pending, counting the interrupted attempt against their retry budget.
func (s *Store) RecoverStuck(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := s.exec(ctx, `
		UPDATE pending_actions
		SET status = 'pending', retry_count = retry_count + 1, error_message = ?, updated_at = ?
		WHERE status = 'processing' AND updated_at < ?
	`, reason, toMillis(s.now()), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to recover stuck actions: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed resets every failed action to pending with a fresh retry budget.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `
		UPDATE pending_actions
		SET status = 'pending', retry_count = 0, error_message = NULL, updated_at = ?
		WHERE status = 'failed'
	`, toMillis(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed actions: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFinishedBefore removes completed and failed actions enqueued before cutoff.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, `
		DELETE FROM pending_actions
		WHERE status IN ('completed', 'failed') AND timestamp < ?
	`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished actions: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAction removes an action regardless of state.
func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM pending_actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanAction(row rowScanner) (*action.PendingAction, error) {
	var (
		a                   action.PendingAction
		typ, payload, state string
		ts, updated         int64
		errMsg              sql.NullString
	)
	if err := row.Scan(&a.ID, &typ, &payload, &state, &a.RetryCount, &ts, &updated, &errMsg, &a.IdempotencyKey); err != nil {
		return nil, err
	}
	a.Type = action.Type(typ)
	a.Payload = []byte(payload)
	a.Status = action.Status(state)
	a.Timestamp = fromMillis(ts)
	a.UpdatedAt = fromMillis(updated)
	a.ErrorMessage = errMsg.String
	return &a, nil
}
