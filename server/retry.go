// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	txMaxAttempts = 3
	txRetryDelay  = 20 * time.Millisecond
)

func isRetryablePGTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.SQLState() {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available (incl. lock_timeout)
		return true
	default:
		return false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inTx runs fn in a transaction, retrying serialization failures and deadlocks
// with a linear delay. fn must be safe to run again from scratch.
func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = pgx.BeginFunc(ctx, s.pool, fn)
		if err == nil || !isRetryablePGTxError(err) {
			return err
		}
		s.logger.Warn("Retrying transaction", "attempt", attempt, "error", err)
		if serr := sleepWithContext(ctx, time.Duration(attempt)*txRetryDelay); serr != nil {
			return serr
		}
	}
	return err
}
