// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package api holds the JSON wire models and routes shared by the backend and the
// device-side client. Every response body carries a "success" flag.
package api

import "sort"

// Routes
const (
	PathHealth        = "/health"
	PathSignup        = "/api/auth/signup"
	PathLogin         = "/api/auth/login"
	PathPosts         = "/api/posts"
	PathFeed          = "/api/posts/feed"
	PathToggleLike    = "/api/posts/like"
	PathToggleSave    = "/api/posts/save"
	PathComments      = "/api/posts/comments"
	PathDeletePost    = "/api/posts/delete"
	PathStories       = "/api/stories"
	PathActiveStories = "/api/stories/active"
	PathDeleteStory   = "/api/stories/delete"
	PathFiles         = "/api/files"
	PathMessages      = "/api/messages"
	PathFollow        = "/api/users/follow"
	PathUnfollow      = "/api/users/unfollow"
	PathMedia         = "/media/"
)

// HeaderIdempotencyKey carries the client-chosen key that makes a write safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// Envelope is the common part of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SignupRequest creates an account. Profile fields are optional.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	UserID  string `json:"user_id"`
}

// Post is a feed entry. Timestamps are unix milliseconds.
type Post struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	Username      string   `json:"username"`
	Caption       string   `json:"caption"`
	ImageURLs     []string `json:"image_urls"`
	LikesCount    int      `json:"likes_count"`
	CommentsCount int      `json:"comments_count"`
	IsLiked       bool     `json:"is_liked"`
	IsSaved       bool     `json:"is_saved"`
	Timestamp     int64    `json:"timestamp"`
}

type CreatePostResponse struct {
	Success   bool   `json:"success"`
	PostID    string `json:"post_id"`
	Timestamp int64  `json:"timestamp"`
}

type FeedResponse struct {
	Success bool   `json:"success"`
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"has_more"`
}

type PostIDRequest struct {
	PostID string `json:"post_id"`
}

type ToggleLikeResponse struct {
	Success    bool `json:"success"`
	IsLiked    bool `json:"is_liked"`
	LikesCount int  `json:"likes_count"`
}

type ToggleSaveResponse struct {
	Success bool `json:"success"`
	IsSaved bool `json:"is_saved"`
}

type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type AddCommentRequest struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type CommentResponse struct {
	Success bool    `json:"success"`
	Comment Comment `json:"comment"`
}

type CommentsResponse struct {
	Success  bool      `json:"success"`
	Comments []Comment `json:"comments"`
}

type Story struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	MediaURL         string `json:"media_url"`
	MediaType        string `json:"media_type"`
	CloseFriendsOnly bool   `json:"close_friends_only"`
	UploadedAt       int64  `json:"uploaded_at"`
	ExpiresAt        int64  `json:"expires_at"`
}

type UploadStoryResponse struct {
	Success    bool   `json:"success"`
	StoryID    string `json:"story_id"`
	MediaURL   string `json:"media_url"`
	UploadedAt int64  `json:"uploaded_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

type StoriesResponse struct {
	Success bool    `json:"success"`
	Stories []Story `json:"stories"`
}

type StoryIDRequest struct {
	StoryID string `json:"story_id"`
}

type UploadFileResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
	ImageURL   string `json:"image_url,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
	ImageURL   string `json:"image_url,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

type MessageResponse struct {
	Success bool    `json:"success"`
	Message Message `json:"message"`
}

type MessagesResponse struct {
	Success  bool      `json:"success"`
	Messages []Message `json:"messages"`
}

type FollowRequest struct {
	UserID string `json:"user_id"`
}

type FollowResponse struct {
	Success     bool `json:"success"`
	IsFollowing bool `json:"is_following"`
}

// ChatID returns the identifier of the one-to-one chat between two users. It does
// not depend on argument order.
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}
