// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the offline write taxonomy: the ten queued action kinds,
// their lifecycle states, and the typed payloads stored in the pending-action log.
package action

import "time"

// Type identifies the kind of a queued write.
type Type string

const (
	TypeSendMessage  Type = "send_message"
	TypeCreatePost   Type = "create_post"
	TypeUploadStory  Type = "upload_story"
	TypeLikePost     Type = "like_post"
	TypeUnlikePost   Type = "unlike_post"
	TypeSavePost     Type = "save_post"
	TypeUnsavePost   Type = "unsave_post"
	TypeAddComment   Type = "add_comment"
	TypeFollowUser   Type = "follow_user"
	TypeUnfollowUser Type = "unfollow_user"
)

// AllTypes lists every known action type in declaration order.
var AllTypes = []Type{
	TypeSendMessage,
	TypeCreatePost,
	TypeUploadStory,
	TypeLikePost,
	TypeUnlikePost,
	TypeSavePost,
	TypeUnsavePost,
	TypeAddComment,
	TypeFollowUser,
	TypeUnfollowUser,
}

// Valid reports whether t is one of the known action types.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BackgroundSynced reports whether writes of this type always go through the queue,
// even while online. Media uploads are never attempted inline.
func (t Type) BackgroundSynced() bool {
	switch t {
	case TypeCreatePost, TypeUploadStory:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a pending action.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further attempts will be made for s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MaxRetry is the number of failed attempts after which an action is marked failed.
const MaxRetry = 3

// ReasonMaxRetries is recorded on actions that exhausted MaxRetry.
const ReasonMaxRetries = "max retries exceeded"

// PendingAction is one durably queued write.
type PendingAction struct {
	ID             int64
	Type           Type
	Payload        []byte // encoded form, see Encode
	Status         Status
	RetryCount     int
	Timestamp      time.Time // enqueue time, drives FIFO order and retention
	UpdatedAt      time.Time
	ErrorMessage   string
	IdempotencyKey string // stable across retries
}

// Decode returns the typed payload of the action.
func (a *PendingAction) Decode() (Payload, error) {
	return Decode(a.Type, a.Payload)
}

// Exhausted reports whether the action has used up its retry budget.
func (a *PendingAction) Exhausted() bool {
	return a.RetryCount >= MaxRetry
}
