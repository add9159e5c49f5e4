// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncengine drains the pending-action log against the backend and keeps
// the local cache in step with the server.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daniyalkhawar366/socialsync/action"
	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/localstore"
	"github.com/daniyalkhawar366/socialsync/session"
)

var (
	// ErrNoCredential aborts a run before the queue is touched. The user must sign in again.
	ErrNoCredential = session.ErrNoCredential
	// ErrActionsFailed is returned when at least one action failed during a run.
	ErrActionsFailed = errors.New("one or more actions failed")
)

// ReasonRecovered is recorded on actions reset after an interrupted run.
const ReasonRecovered = "recovered from interrupted run"

// Credentials supplies the bearer token for a run.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// RemoteAPI is the part of the backend the action handlers call.
type RemoteAPI interface {
	UploadFile(ctx context.Context, token, path string) (string, error)
	SendMessage(ctx context.Context, token string, req api.SendMessageRequest) (*api.Message, error)
	CreatePost(ctx context.Context, token, caption string, imagePaths []string) (*api.CreatePostResponse, error)
	UploadStory(ctx context.Context, token, mediaPath, mediaType string, closeFriendsOnly bool) (*api.UploadStoryResponse, error)
	ToggleLike(ctx context.Context, token, postID string) (*api.ToggleLikeResponse, error)
	ToggleSave(ctx context.Context, token, postID string) (*api.ToggleSaveResponse, error)
	AddComment(ctx context.Context, token string, req api.AddCommentRequest) (*api.Comment, error)
	Follow(ctx context.Context, token, userID string) (*api.FollowResponse, error)
	Unfollow(ctx context.Context, token, userID string) (*api.FollowResponse, error)
}

// Config controls the engine.
type Config struct {
	// ProcessingTimeout after which an action still marked processing is treated as
	// abandoned by a killed run.
	ProcessingTimeout time.Duration
	// Retention for cached posts and finished actions.
	Retention time.Duration
	// Metrics, when set, observes every processed action.
	Metrics MetricsRecorder
}

func DefaultConfig() *Config {
	return &Config{
		ProcessingTimeout: 10 * time.Minute,
		Retention:         7 * 24 * time.Hour,
	}
}

// Result summarizes one drain.
type Result struct {
	Recovered int64 // processing actions reset to pending before the drain
	Attempted int   // handler invocations
	Completed int
	Failed    int // attempts that failed and went back to pending
	Exhausted int // actions marked failed without an attempt
	Skipped   int // actions another drain had already claimed
}

// OK reports whether no attempt failed.
func (r Result) OK() bool { return r.Failed == 0 }

// Engine runs drains. RunSync is not reentrant; callers go through Scheduler.
type Engine struct {
	store  *localstore.Store
	remote RemoteAPI
	creds  Credentials
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an engine. A nil config uses DefaultConfig.
func NewEngine(store *localstore.Store, remote RemoteAPI, creds Credentials, config *Config, logger *slog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		remote: remote,
		creds:  creds,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// RunSync drains every pending action in FIFO order. It returns ErrNoCredential
// without touching the queue when no token is available, and ErrActionsFailed when
// any attempt failed so the caller can back off and retry.
func (e *Engine) RunSync(ctx context.Context) (Result, error) {
	var res Result

	token, err := e.creds.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			err = fmt.Errorf("%w: %v", ErrNoCredential, err)
		}
		e.logger.Warn("Sync skipped: no credential", "error", err)
		return res, err
	}

	cutoff := e.now().Add(-e.config.ProcessingTimeout)
	if res.Recovered, err = e.store.RecoverStuck(ctx, cutoff, ReasonRecovered); err != nil {
		e.logger.Error("Failed to recover stuck actions", "error", err)
	} else if res.Recovered > 0 {
		e.logger.Warn("Recovered actions from an interrupted run", "count", res.Recovered)
	}

	pending, err := e.store.PendingActions(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load pending actions: %w", err)
	}
	e.logger.Info("Sync started", "pending", len(pending))

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.process(ctx, token, a, &res)
	}

	e.cleanup(ctx)

	e.logger.Info("Sync finished",
		"attempted", res.Attempted,
		"completed", res.Completed,
		"failed", res.Failed,
		"exhausted", res.Exhausted)
	if !res.OK() {
		return res, fmt.Errorf("%w: %d of %d", ErrActionsFailed, res.Failed, res.Attempted)
	}
	return res, nil
}

func (e *Engine) process(ctx context.Context, token string, a *action.PendingAction, res *Result) {
	log := e.logger.With("action_id", a.ID, "action_type", a.Type, "retry_count", a.RetryCount)
	start := time.Now()

	if a.Exhausted() {
		if err := e.store.FailAction(ctx, a.ID, action.ReasonMaxRetries); err != nil {
			log.Error("Failed to mark action failed", "error", err)
			return
		}
		res.Exhausted++
		e.observe(ctx, a, OutcomeExhausted, start)
		log.Warn("Action failed permanently", "reason", action.ReasonMaxRetries, "last_error", a.ErrorMessage)
		return
	}

	if err := e.store.ClaimAction(ctx, a.ID); err != nil {
		if errors.Is(err, localstore.ErrNotClaimable) {
			res.Skipped++
			log.Debug("Action already claimed")
			return
		}
		log.Error("Failed to claim action", "error", err)
		res.Failed++
		return
	}

	res.Attempted++
	hr := e.dispatch(ctx, token, a)

	// The outcome must be recorded even when the run was cancelled mid-handler,
	// otherwise the action stays in processing until recovery.
	done := context.WithoutCancel(ctx)
	if hr.OK {
		if err := e.store.CompleteAction(done, a.ID); err != nil {
			log.Error("Failed to mark action completed", "error", err)
		}
		res.Completed++
		e.observe(done, a, OutcomeCompleted, start)
		log.Info("Action completed")
		e.reconcile(done, hr.payload)
		return
	}

	res.Failed++
	e.observe(done, a, OutcomeRetry, start)
	if err := e.store.ReleaseAction(done, a.ID, hr.Reason); err != nil {
		log.Error("Failed to release action", "error", err)
	}
	log.Warn("Action failed", "reason", hr.Reason, "permanent", hr.Permanent)
}

// dispatch decodes the payload once and runs its handler under the action's
// idempotency key.
func (e *Engine) dispatch(ctx context.Context, token string, a *action.PendingAction) HandlerResult {
	p, err := a.Decode()
	if err != nil {
		return failed(fmt.Sprintf("undecodable payload: %v", err), true)
	}
	hr := e.Execute(ctx, token, a.IdempotencyKey, p)
	hr.payload = p
	return hr
}

// reconcile updates the cache after a queued action succeeded. Cache errors are
// logged only.
func (e *Engine) reconcile(ctx context.Context, p action.Payload) {
	switch v := p.(type) {
	case action.SendMessage:
		if v.ChatID == "" {
			return
		}
		n, err := e.store.DeletePendingMessages(ctx, v.ChatID)
		if err != nil {
			e.logger.Error("Failed to purge pending messages", "chat_id", v.ChatID, "error", err)
			return
		}
		if n > 0 {
			e.logger.Debug("Purged pending messages", "chat_id", v.ChatID, "count", n)
		}
	case action.CreatePost:
		e.dropLocal(ctx, v.LocalID, e.store.DeletePost)
	case action.UploadStory:
		e.dropLocal(ctx, v.LocalID, e.store.DeleteStory)
	}
}

func (e *Engine) dropLocal(ctx context.Context, id string, del func(context.Context, string) error) {
	if id == "" {
		return
	}
	// The row may already be gone through cleanup; that is fine.
	if err := del(ctx, id); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		e.logger.Error("Failed to drop optimistic row", "local_id", id, "error", err)
	}
}

// cleanup evicts aged cache rows and finished actions.
func (e *Engine) cleanup(ctx context.Context) {
	now := e.now()
	cutoff := now.Add(-e.config.Retention)

	if n, err := e.store.DeletePostsCachedBefore(ctx, cutoff); err != nil {
		e.logger.Error("Failed to evict cached posts", "error", err)
	} else if n > 0 {
		e.logger.Debug("Evicted cached posts", "count", n)
	}
	if n, err := e.store.DeleteExpiredStories(ctx, now); err != nil {
		e.logger.Error("Failed to evict expired stories", "error", err)
	} else if n > 0 {
		e.logger.Debug("Evicted expired stories", "count", n)
	}
	if n, err := e.store.DeleteFinishedBefore(ctx, cutoff); err != nil {
		e.logger.Error("Failed to delete finished actions", "error", err)
	} else if n > 0 {
		e.logger.Debug("Deleted finished actions", "count", n)
	}
}
