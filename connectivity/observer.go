// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectivity tracks whether the device can reach the backend.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober reports whether the network is currently usable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Config controls probing.
type Config struct {
	// Interval between probes. Zero disables polling; state then changes only via SetOnline.
	Interval time.Duration
	// Timeout for a single probe.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, Timeout: 5 * time.Second}
}

// Observer holds the current online state and fans out transitions to subscribers.
// It is constructed explicitly and owns its polling goroutine between Start and Stop.
type Observer struct {
	prober Prober
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	online bool
	subs   map[chan bool]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewObserver creates an observer. prober may be nil when the platform pushes state
// through SetOnline.
func NewObserver(prober Prober, cfg Config, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Observer{
		prober: prober,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[chan bool]struct{}),
	}
}

// Start probes once and then polls until Stop or ctx is done.
func (o *Observer) Start(ctx context.Context) {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.mu.Unlock()

	if o.prober == nil || o.cfg.Interval <= 0 {
		close(o.done)
		return
	}

	o.probe(ctx)
	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.probe(ctx)
			}
		}
	}()
}

// Stop halts polling and closes every subscription channel.
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel = nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	o.mu.Lock()
	for ch := range o.subs {
		close(ch)
		delete(o.subs, ch)
	}
	o.mu.Unlock()
}

func (o *Observer) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	o.SetOnline(o.prober.Probe(pctx))
}

// Online reports the last known state.
func (o *Observer) Online() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.online
}

// SetOnline records a state from the platform network signal. Subscribers are
// notified only on transitions.
func (o *Observer) SetOnline(online bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.online == online {
		return
	}
	o.online = online
	o.logger.Info("Connectivity changed", "online", online)
	for ch := range o.subs {
		// Keep only the latest state for slow subscribers.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Subscribe returns a channel receiving each transition and a function that
// unsubscribes. The channel holds at most one undelivered value.
func (o *Observer) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
	}
}
