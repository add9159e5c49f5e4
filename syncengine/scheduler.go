// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// syncWorkID keys the single in-flight drain.
const syncWorkID = "sync-pending-actions"

// Runner is what the scheduler drives; *Engine implements it.
type Runner interface {
	RunSync(ctx context.Context) (Result, error)
}

// OnlineSource reports connectivity; *connectivity.Observer implements it.
type OnlineSource interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

// SchedulerConfig controls when drains run.
type SchedulerConfig struct {
	Interval   time.Duration // periodic drain, 15m
	BackoffMin time.Duration // first retry after a failed drain, 30s
	BackoffMax time.Duration // 30m
	RunTimeout time.Duration // upper bound for one drain, 10m
}

func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval:   15 * time.Minute,
		BackoffMin: 30 * time.Second,
		BackoffMax: 30 * time.Minute,
		RunTimeout: 10 * time.Minute,
	}
}

// Scheduler runs drains periodically, on demand and when the device comes back
// online, and retries failed drains with exponential backoff. At most one drain
// runs at a time.
type Scheduler struct {
	runner Runner
	online OnlineSource
	config *SchedulerConfig
	logger *slog.Logger

	group   singleflight.Group
	trigger chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
	lastErr error
}

// NewScheduler creates a scheduler. online may be nil, in which case the device
// is treated as always online.
func NewScheduler(runner Runner, online OnlineSource, config *SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:  runner,
		online:  online,
		config:  config,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// SyncNow runs a drain, or joins the one already running.
func (s *Scheduler) SyncNow(ctx context.Context) (Result, error) {
	v, err, shared := s.group.Do(syncWorkID, func() (any, error) {
		runCtx := ctx
		if s.config.RunTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
			defer cancel()
		}
		res, err := s.runner.RunSync(runCtx)

		s.mu.Lock()
		s.lastRun = time.Now()
		s.lastErr = err
		s.mu.Unlock()
		return res, err
	})
	if shared {
		s.logger.Debug("Joined in-flight sync")
	}
	res, _ := v.(Result)
	return res, err
}

// Trigger requests a drain soon. Requests made while one is pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastRun returns when the last drain finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Start launches the scheduling loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.logger.Info("Sync scheduler started", "interval", s.config.Interval)
}

// Stop ends the loop and waits for a running drain to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Sync scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	var onlineCh <-chan bool
	if s.online != nil {
		ch, unsubscribe := s.online.Subscribe()
		defer unsubscribe()
		onlineCh = ch
	}

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	backoff := s.config.BackoffMin
	var retry <-chan time.Time
	var retryTimer *time.Timer
	defer func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-s.trigger:
		case <-retry:
		case up, ok := <-onlineCh:
			if !ok {
				onlineCh = nil
				continue
			}
			if !up {
				continue
			}
			s.logger.Info("Back online, syncing")
		}

		if s.online != nil && !s.online.Online() {
			s.logger.Debug("Offline, sync deferred")
			continue
		}

		_, err := s.SyncNow(ctx)
		switch {
		case err == nil:
			backoff = s.config.BackoffMin
			retry = nil
		case errors.Is(err, ErrNoCredential), errors.Is(err, context.Canceled):
			// Retrying cannot help until the user signs in again or we are shutting down.
			retry = nil
		default:
			s.logger.Warn("Sync failed, retrying later", "error", err, "backoff", backoff)
			if retryTimer != nil {
				retryTimer.Stop()
			}
			retryTimer = time.NewTimer(backoff)
			retry = retryTimer.C
			backoff *= 2
			if backoff > s.config.BackoffMax {
				backoff = s.config.BackoffMax
			}
		}
	}
}
