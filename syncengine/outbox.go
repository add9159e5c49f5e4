// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daniyalkhawar366/socialsync/action"
	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/localstore"
	"github.com/google/uuid"
)

// storyLifetime matches the backend's story expiry.
const storyLifetime = 24 * time.Hour

// Delivery tells the caller what happened to a submitted write.
type Delivery string

const (
	DeliverySent   Delivery = "sent"   // executed against the backend
	DeliveryQueued Delivery = "queued" // stored in the pending-action log
)

// Submission is the outcome of Outbox.Submit.
type Submission struct {
	Delivery Delivery
	Action   *action.PendingAction // set when queued
	LocalID  string                // id of the optimistic cache row, if any
}

// Identity supplies the signed-in user; *session.Manager implements it.
type Identity interface {
	Credentials
	UserID(ctx context.Context) (string, error)
}

// Outbox is the write path for user actions. Online writes of foreground types go
// straight to the backend; everything else is queued with an optimistic cache row
// and a sync is requested.
type Outbox struct {
	engine    *Engine
	store     *localstore.Store
	identity  Identity
	online    func() bool
	scheduler interface{ Trigger() }
	logger    *slog.Logger
}

// NewOutbox creates an outbox. online may be nil (always offline, everything is
// queued) and scheduler may be nil (no sync is requested).
func NewOutbox(engine *Engine, store *localstore.Store, identity Identity, online func() bool, scheduler interface{ Trigger() }, logger *slog.Logger) *Outbox {
	if online == nil {
		online = func() bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		engine:    engine,
		store:     store,
		identity:  identity,
		online:    online,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Submit performs or queues p.
func (o *Outbox) Submit(ctx context.Context, p action.Payload) (*Submission, error) {
	p = action.Value(p)
	if p == nil || !p.ActionType().Valid() {
		return nil, fmt.Errorf("%w: %v", action.ErrUnknownType, p)
	}
	userID, err := o.identity.UserID(ctx)
	if err != nil {
		return nil, err
	}
	p = o.prepare(userID, p)
	key := uuid.New().String()

	if o.online() && !p.ActionType().BackgroundSynced() {
		token, err := o.identity.Token(ctx)
		if err != nil {
			return nil, err
		}
		hr := o.engine.Execute(ctx, token, key, p)
		if hr.OK {
			o.logger.Info("Action sent", "action_type", p.ActionType())
			return &Submission{Delivery: DeliverySent}, nil
		}
		// Queued under the same key so a lost response is not applied twice.
		o.logger.Warn("Immediate send failed, queueing", "action_type", p.ActionType(), "reason", hr.Reason)
	}

	a, err := o.store.EnqueueWithKey(ctx, p, key)
	if err != nil {
		return nil, err
	}
	localID := o.writeOptimistic(ctx, userID, p)
	o.logger.Info("Action queued", "action_id", a.ID, "action_type", a.Type)

	if o.scheduler != nil {
		o.scheduler.Trigger()
	}
	return &Submission{Delivery: DeliveryQueued, Action: a, LocalID: localID}, nil
}

// prepare fills in the local identifiers and defaults that reconciliation relies on.
func (o *Outbox) prepare(userID string, p action.Payload) action.Payload {
	now := o.engine.now()
	switch v := p.(type) {
	case action.SendMessage:
		if v.ChatID == "" {
			v.ChatID = api.ChatID(userID, v.ReceiverID)
		}
		if v.LocalID == "" {
			v.LocalID = localstore.NewPendingID()
		}
		if v.ClientTimestamp == 0 {
			v.ClientTimestamp = now.UnixMilli()
		}
		return v
	case action.CreatePost:
		if v.LocalID == "" {
			v.LocalID = localstore.NewPendingID()
		}
		return v
	case action.UploadStory:
		if v.LocalID == "" {
			v.LocalID = localstore.NewPendingID()
		}
		if v.MediaType == "" {
			v.MediaType = "image"
		}
		return v
	case action.AddComment:
		if v.LocalCommentID == "" {
			v.LocalCommentID = localstore.NewPendingID()
		}
		if v.ClientTimestamp == 0 {
			v.ClientTimestamp = now.UnixMilli()
		}
		return v
	}
	return p
}

// writeOptimistic mirrors a queued write into the cache. Failures are logged and
// do not affect the queued action.
func (o *Outbox) writeOptimistic(ctx context.Context, userID string, p action.Payload) string {
	now := o.engine.now()
	var (
		localID string
		err     error
	)
	switch v := p.(type) {
	case action.SendMessage:
		localID = v.LocalID
		err = o.store.UpsertMessage(ctx, &localstore.CachedMessage{
			ID:             v.LocalID,
			ChatID:         v.ChatID,
			SenderID:       userID,
			ReceiverID:     v.ReceiverID,
			Text:           v.Text,
			LocalImagePath: v.LocalImagePath,
			Timestamp:      time.UnixMilli(v.ClientTimestamp),
		})
	case action.CreatePost:
		localID = v.LocalID
		err = o.store.UpsertPost(ctx, &localstore.CachedPost{
			ID:              v.LocalID,
			UserID:          userID,
			Caption:         v.Caption,
			LocalImagePaths: v.LocalImagePaths,
			Timestamp:       now,
		})
	case action.UploadStory:
		localID = v.LocalID
		err = o.store.UpsertStory(ctx, &localstore.CachedStory{
			ID:               v.LocalID,
			UserID:           userID,
			MediaType:        v.MediaType,
			LocalMediaPath:   v.LocalMediaPath,
			CloseFriendsOnly: v.CloseFriendsOnly,
			UploadedAt:       now,
			ExpiresAt:        now.Add(storyLifetime),
		})
	case action.AddComment:
		localID = v.LocalCommentID
	}
	if err != nil {
		o.logger.Error("Failed to write optimistic cache row", "action_type", p.ActionType(), "error", err)
	}
	return localID
}
