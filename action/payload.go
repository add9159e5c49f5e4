// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package action

// Payload is the tagged union of typed action payloads. Each variant maps to exactly
// one Type.
type Payload interface {
	ActionType() Type
}

// SendMessage sends a chat message, optionally with an image that is uploaded first.
type SendMessage struct {
	ChatID          string `json:"chat_id"`
	ReceiverID      string `json:"receiver_id"`
	Text            string `json:"text"`
	LocalImagePath  string `json:"local_image_path,omitempty"`
	LocalID         string `json:"local_id,omitempty"` // id of the optimistic cached row
	ClientTimestamp int64  `json:"client_timestamp"`   // unix millis
}

func (SendMessage) ActionType() Type { return TypeSendMessage }

// HasImage reports whether the message carries an image attachment.
func (p SendMessage) HasImage() bool { return p.LocalImagePath != "" }

// CreatePost publishes a post with one or more local images.
type CreatePost struct {
	Caption         string   `json:"caption"`
	LocalImagePaths []string `json:"local_image_paths"`
	LocalID         string   `json:"local_id,omitempty"`
}

func (CreatePost) ActionType() Type { return TypeCreatePost }

// UploadStory uploads a single local media file as a story.
type UploadStory struct {
	LocalMediaPath   string `json:"local_media_path"`
	MediaType        string `json:"media_type"` // "image" or "video"
	CloseFriendsOnly bool   `json:"close_friends_only,omitempty"`
	LocalID          string `json:"local_id,omitempty"`
}

func (UploadStory) ActionType() Type { return TypeUploadStory }

type LikePost struct {
	PostID string `json:"post_id"`
}

func (LikePost) ActionType() Type { return TypeLikePost }

type UnlikePost struct {
	PostID string `json:"post_id"`
}

func (UnlikePost) ActionType() Type { return TypeUnlikePost }

type SavePost struct {
	PostID string `json:"post_id"`
}

func (SavePost) ActionType() Type { return TypeSavePost }

type UnsavePost struct {
	PostID string `json:"post_id"`
}

func (UnsavePost) ActionType() Type { return TypeUnsavePost }

// AddComment posts a comment. LocalCommentID is the id shown optimistically; the
// remote comment is created under a fresh id.
type AddComment struct {
	PostID          string `json:"post_id"`
	Text            string `json:"text"`
	LocalCommentID  string `json:"local_comment_id,omitempty"`
	ClientTimestamp int64  `json:"client_timestamp"`
}

func (AddComment) ActionType() Type { return TypeAddComment }

type FollowUser struct {
	UserID string `json:"user_id"`
}

func (FollowUser) ActionType() Type { return TypeFollowUser }

type UnfollowUser struct {
	UserID string `json:"user_id"`
}

func (UnfollowUser) ActionType() Type { return TypeUnfollowUser }

// newPayload returns a zero value of the variant for t, or nil for unknown types.
func newPayload(t Type) Payload {
	switch t {
	case TypeSendMessage:
		return &SendMessage{}
	case TypeCreatePost:
		return &CreatePost{}
	case TypeUploadStory:
		return &UploadStory{}
	case TypeLikePost:
		return &LikePost{}
	case TypeUnlikePost:
		return &UnlikePost{}
	case TypeSavePost:
		return &SavePost{}
	case TypeUnsavePost:
		return &UnsavePost{}
	case TypeAddComment:
		return &AddComment{}
	case TypeFollowUser:
		return &FollowUser{}
	case TypeUnfollowUser:
		return &UnfollowUser{}
	default:
		return nil
	}
}
