// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/localstore"
)

// FetchAPI is the read side of the backend.
type FetchAPI interface {
	GetFeed(ctx context.Context, token string, limit int, before int64) (*api.FeedResponse, error)
	ActiveStories(ctx context.Context, token string) ([]api.Story, error)
	GetMessages(ctx context.Context, token, otherUserID string, limit int) ([]api.Message, error)
}

// Refresher fetches authoritative rows from the backend into the cache.
type Refresher struct {
	remote   FetchAPI
	store    *localstore.Store
	identity Identity
	logger   *slog.Logger
}

func NewRefresher(remote FetchAPI, store *localstore.Store, identity Identity, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{remote: remote, store: store, identity: identity, logger: logger}
}

// RefreshFeed caches one page of the feed and returns the number of posts stored.
func (r *Refresher) RefreshFeed(ctx context.Context, limit int, before int64) (int, error) {
	token, err := r.identity.Token(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := r.remote.GetFeed(ctx, token, limit, before)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	posts := make([]*localstore.CachedPost, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		posts = append(posts, &localstore.CachedPost{
			ID:            p.ID,
			UserID:        p.UserID,
			Username:      p.Username,
			Caption:       p.Caption,
			ImageURLs:     p.ImageURLs,
			LikesCount:    p.LikesCount,
			CommentsCount: p.CommentsCount,
			IsLiked:       p.IsLiked,
			IsSaved:       p.IsSaved,
			Timestamp:     time.UnixMilli(p.Timestamp),
			IsSent:        true,
		})
	}
	if err := r.store.UpsertPosts(ctx, posts); err != nil {
		return 0, err
	}
	r.logger.Debug("Feed refreshed", "posts", len(posts), "has_more", resp.HasMore)
	return len(posts), nil
}

// RefreshStories caches the active stories.
func (r *Refresher) RefreshStories(ctx context.Context) (int, error) {
	token, err := r.identity.Token(ctx)
	if err != nil {
		return 0, err
	}
	stories, err := r.remote.ActiveStories(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stories: %w", err)
	}

	cached := make([]*localstore.CachedStory, 0, len(stories))
	for _, s := range stories {
		cached = append(cached, &localstore.CachedStory{
			ID:               s.ID,
			UserID:           s.UserID,
			Username:         s.Username,
			MediaURL:         s.MediaURL,
			MediaType:        s.MediaType,
			CloseFriendsOnly: s.CloseFriendsOnly,
			UploadedAt:       time.UnixMilli(s.UploadedAt),
			ExpiresAt:        time.UnixMilli(s.ExpiresAt),
			IsSent:           true,
		})
	}
	if err := r.store.UpsertStories(ctx, cached); err != nil {
		return 0, err
	}
	return len(cached), nil
}

// RefreshMessages caches the conversation with otherUserID and updates its chat row.
func (r *Refresher) RefreshMessages(ctx context.Context, otherUserID string, limit int) (int, error) {
	token, err := r.identity.Token(ctx)
	if err != nil {
		return 0, err
	}
	me, err := r.identity.UserID(ctx)
	if err != nil {
		return 0, err
	}
	msgs, err := r.remote.GetMessages(ctx, token, otherUserID, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	chatID := api.ChatID(me, otherUserID)
	cached := make([]*localstore.CachedMessage, 0, len(msgs))
	for _, m := range msgs {
		id := m.ChatID
		if id == "" {
			id = chatID
		}
		cached = append(cached, &localstore.CachedMessage{
			ID:         m.ID,
			ChatID:     id,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			ImageURL:   m.ImageURL,
			Timestamp:  time.UnixMilli(m.Timestamp),
			IsSent:     true,
		})
	}
	if err := r.store.UpsertMessages(ctx, cached); err != nil {
		return 0, err
	}

	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		chat := &localstore.CachedChat{
			ID:            chatID,
			OtherUserID:   otherUserID,
			LastMessage:   last.Text,
			LastMessageAt: time.UnixMilli(last.Timestamp),
		}
		if err := r.store.UpsertChat(ctx, chat); err != nil {
			r.logger.Error("Failed to update chat", "chat_id", chatID, "error", err)
		}
	}
	return len(cached), nil
}
