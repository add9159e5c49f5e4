// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PendingPrefix marks identifiers generated on the device for rows that have not
// been confirmed by the server. Server identifiers never carry it.
const PendingPrefix = "pending_"

// NewPendingID returns a fresh locally generated identifier.
func NewPendingID() string {
	return PendingPrefix + uuid.New().String()
}

// IsPendingID reports whether id was generated locally.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingPrefix)
}

// CachedMessage mirrors a chat message.
type CachedMessage struct {
	ID             string
	ChatID         string
	SenderID       string
	ReceiverID     string
	Text           string
	ImageURL       string
	LocalImagePath string // set while the image is not yet uploaded
	Timestamp      time.Time
	IsSent         bool
	CachedAt       time.Time
}

// CachedPost mirrors a feed post.
type CachedPost struct {
	ID              string
	UserID          string
	Username        string
	Caption         string
	ImageURLs       []string
	LocalImagePaths []string
	LikesCount      int
	CommentsCount   int
	IsLiked         bool
	IsSaved         bool
	Timestamp       time.Time
	IsSent          bool
	CachedAt        time.Time
}

// CachedStory mirrors a story.
type CachedStory struct {
	ID               string
	UserID           string
	Username         string
	MediaURL         string
	MediaType        string
	LocalMediaPath   string
	CloseFriendsOnly bool
	UploadedAt       time.Time
	ExpiresAt        time.Time
	IsSent           bool
	CachedAt         time.Time
}

// CachedChat mirrors a chat summary.
type CachedChat struct {
	ID            string
	OtherUserID   string
	OtherUsername string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
	CachedAt      time.Time
}
