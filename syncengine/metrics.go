// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"time"

	"github.com/daniyalkhawar366/socialsync/action"
)

// Outcomes reported in ActionTiming.
const (
	OutcomeCompleted = "completed"
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
)

// ActionTiming describes one processed action.
type ActionTiming struct {
	Type     action.Type
	Outcome  string
	Attempt  int // retry count before this attempt
	Duration time.Duration
}

// MetricsRecorder receives one timing per processed action. Implementations must
// be cheap and must not block.
type MetricsRecorder interface {
	ObserveAction(ctx context.Context, timing ActionTiming)
}

type MetricsRecorderFunc func(ctx context.Context, timing ActionTiming)

func (f MetricsRecorderFunc) ObserveAction(ctx context.Context, timing ActionTiming) {
	f(ctx, timing)
}

func (e *Engine) observe(ctx context.Context, a *action.PendingAction, outcome string, start time.Time) {
	if e.config.Metrics == nil {
		return
	}
	e.config.Metrics.ObserveAction(ctx, ActionTiming{
		Type:     a.Type,
		Outcome:  outcome,
		Attempt:  a.RetryCount,
		Duration: time.Since(start),
	})
}
