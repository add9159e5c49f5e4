// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the social backend: accounts, posts, stories, comments,
// direct messages and follows over JSON/HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrForbidden      = errors.New("not the owner")
)

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Username     string
	FullName     string
	Bio          string
	CreatedAt    time.Time
}

// NewPost is the data needed to insert a post.
type NewPost struct {
	ID        string
	UserID    string
	Caption   string
	ImageURLs []string
	CreatedAt time.Time
}

// Store is the persistence layer used by the handlers. Read methods return wire
// models with usernames resolved and timestamps in unix millis.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)

	CreatePost(ctx context.Context, p *NewPost) error
	// Feed returns up to limit posts created before the cursor, newest first, with
	// is_liked/is_saved relative to viewerID. A zero cursor means now.
	Feed(ctx context.Context, viewerID string, limit int, before time.Time) ([]api.Post, error)
	PostOwner(ctx context.Context, postID string) (string, error)
	// DeletePost removes the post and returns its image URLs.
	DeletePost(ctx context.Context, postID string) ([]string, error)
	ToggleLike(ctx context.Context, userID, postID string) (liked bool, count int, err error)
	ToggleSave(ctx context.Context, userID, postID string) (saved bool, err error)

	// AddComment stores c; a comment id that already exists is left unchanged.
	AddComment(ctx context.Context, c *api.Comment) error
	Comments(ctx context.Context, postID string) ([]api.Comment, error)

	CreateStory(ctx context.Context, s *api.Story) error
	Story(ctx context.Context, id string) (*api.Story, error)
	// ActiveStories returns stories expiring after now grouped by user, newest first.
	ActiveStories(ctx context.Context, now time.Time) ([]api.Story, error)
	DeleteStory(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m *api.Message) error
	// Messages returns the last limit messages of a chat in ascending order.
	Messages(ctx context.Context, chatID string, limit int) ([]api.Message, error)

	SetFollow(ctx context.Context, followerID, followeeID string, follow bool) error
}
