// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/daniyalkhawar366/socialsync/action"
	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/apiclient"
	"github.com/google/uuid"
)

// HandlerResult is the outcome of one attempt at an action.
type HandlerResult struct {
	OK     bool
	Reason string // failure diagnostic stored on the action
	// Permanent marks failures a retry cannot fix, such as a deleted local file.
	// They are still retried up to the cap.
	Permanent bool

	payload action.Payload
}

func succeeded() HandlerResult { return HandlerResult{OK: true} }

func failed(reason string, permanent bool) HandlerResult {
	return HandlerResult{Reason: reason, Permanent: permanent}
}

func remoteFailed(step string, err error) HandlerResult {
	var apiErr *apiclient.APIError
	// A 4xx other than 401/408/429 will be rejected the same way next time.
	permanent := errors.As(err, &apiErr) &&
		apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != 401 && apiErr.StatusCode != 408 && apiErr.StatusCode != 429
	return failed(fmt.Sprintf("%s: %v", step, err), permanent)
}

func missingFile(path string, err error) HandlerResult {
	return failed(fmt.Sprintf("local file unavailable %s: %v", path, err), true)
}

// Execute performs p against the backend with the given token and idempotency key.
// Panics inside a handler are converted into a failed result.
func (e *Engine) Execute(ctx context.Context, token, idempotencyKey string, p action.Payload) (hr HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Handler panicked", "payload", fmt.Sprintf("%T", p), "panic", r, "stack", string(debug.Stack()))
			hr = failed(fmt.Sprintf("handler panic: %v", r), false)
		}
	}()
	if idempotencyKey != "" {
		ctx = apiclient.WithIdempotencyKey(ctx, idempotencyKey)
	}

	switch v := action.Value(p).(type) {
	case action.SendMessage:
		return e.sendMessage(ctx, token, v)
	case action.CreatePost:
		return e.createPost(ctx, token, v)
	case action.UploadStory:
		return e.uploadStory(ctx, token, v)
	case action.LikePost:
		return e.toggleLike(ctx, token, v.PostID)
	case action.UnlikePost:
		return e.toggleLike(ctx, token, v.PostID)
	case action.SavePost:
		return e.toggleSave(ctx, token, v.PostID)
	case action.UnsavePost:
		return e.toggleSave(ctx, token, v.PostID)
	case action.AddComment:
		return e.addComment(ctx, token, v)
	case action.FollowUser:
		if _, err := e.remote.Follow(ctx, token, v.UserID); err != nil {
			return remoteFailed("follow", err)
		}
		return succeeded()
	case action.UnfollowUser:
		if _, err := e.remote.Unfollow(ctx, token, v.UserID); err != nil {
			return remoteFailed("unfollow", err)
		}
		return succeeded()
	default:
		return failed(fmt.Sprintf("no handler for %T", p), true)
	}
}

// sendMessage uploads the attached image first; the message is never sent without it.
func (e *Engine) sendMessage(ctx context.Context, token string, p action.SendMessage) HandlerResult {
	var imageURL string
	if p.HasImage() {
		if _, err := os.Stat(p.LocalImagePath); err != nil {
			return missingFile(p.LocalImagePath, err)
		}
		url, err := e.remote.UploadFile(ctx, token, p.LocalImagePath)
		if err != nil {
			return remoteFailed("upload image", err)
		}
		imageURL = url
	}

	_, err := e.remote.SendMessage(ctx, token, api.SendMessageRequest{
		ReceiverID: p.ReceiverID,
		Text:       p.Text,
		ImageURL:   imageURL,
		Timestamp:  p.ClientTimestamp,
	})
	if err != nil {
		return remoteFailed("send message", err)
	}
	return succeeded()
}

// createPost skips images that no longer exist and fails without a request when
// none remain.
func (e *Engine) createPost(ctx context.Context, token string, p action.CreatePost) HandlerResult {
	paths := make([]string, 0, len(p.LocalImagePaths))
	for _, path := range p.LocalImagePaths {
		if _, err := os.Stat(path); err != nil {
			e.logger.Warn("Skipping missing post image", "path", path, "error", err)
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return failed("no local images available for post", true)
	}

	if _, err := e.remote.CreatePost(ctx, token, p.Caption, paths); err != nil {
		return remoteFailed("create post", err)
	}
	return succeeded()
}

func (e *Engine) uploadStory(ctx context.Context, token string, p action.UploadStory) HandlerResult {
	if _, err := os.Stat(p.LocalMediaPath); err != nil {
		return missingFile(p.LocalMediaPath, err)
	}
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = "image"
	}
	if _, err := e.remote.UploadStory(ctx, token, p.LocalMediaPath, mediaType, p.CloseFriendsOnly); err != nil {
		return remoteFailed("upload story", err)
	}
	return succeeded()
}

// toggleLike serves both like and unlike; the backend only toggles.
func (e *Engine) toggleLike(ctx context.Context, token, postID string) HandlerResult {
	if _, err := e.remote.ToggleLike(ctx, token, postID); err != nil {
		return remoteFailed("toggle like", err)
	}
	return succeeded()
}

func (e *Engine) toggleSave(ctx context.Context, token, postID string) HandlerResult {
	if _, err := e.remote.ToggleSave(ctx, token, postID); err != nil {
		return remoteFailed("toggle save", err)
	}
	return succeeded()
}

// addComment sends the comment under a new id and the current time. The optimistic
// local id is not reused.
func (e *Engine) addComment(ctx context.Context, token string, p action.AddComment) HandlerResult {
	_, err := e.remote.AddComment(ctx, token, api.AddCommentRequest{
		PostID:    p.PostID,
		CommentID: uuid.New().String(),
		Text:      p.Text,
		Timestamp: e.now().UnixMilli(),
	})
	if err != nil {
		return remoteFailed("add comment", err)
	}
	return succeeded()
}
