// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniyalkhawar366/socialsync/api"
)

// Signup creates an account and returns its token.
func (c *Client) Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathSignup, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	req := api.LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, api.PathLogin, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, api.PathHealth, "", nil, nil)
}

// CreatePost uploads every image with the caption in a single multipart request.
func (c *Client) CreatePost(ctx context.Context, token, caption string, imagePaths []string) (*api.CreatePostResponse, error) {
	files := make([]filePart, 0, len(imagePaths))
	for _, p := range imagePaths {
		files = append(files, filePart{field: "images", path: p})
	}
	var resp api.CreatePostResponse
	fields := map[string]string{"caption": caption}
	if err := c.doMultipart(ctx, api.PathPosts, token, fields, files, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFeed returns up to limit posts older than before (unix ms). Zero before means newest.
func (c *Client) GetFeed(ctx context.Context, token string, limit int, before int64) (*api.FeedResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	var resp api.FeedResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathFeed, q), token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ToggleLike(ctx context.Context, token, postID string) (*api.ToggleLikeResponse, error) {
	var resp api.ToggleLikeResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathToggleLike, token, api.PostIDRequest{PostID: postID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ToggleSave(ctx context.Context, token, postID string) (*api.ToggleSaveResponse, error) {
	var resp api.ToggleSaveResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathToggleSave, token, api.PostIDRequest{PostID: postID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddComment(ctx context.Context, token string, req api.AddCommentRequest) (*api.Comment, error) {
	var resp api.CommentResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathComments, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Comment, nil
}

// GetComments returns the post's comments, oldest first.
func (c *Client) GetComments(ctx context.Context, token, postID string) ([]api.Comment, error) {
	q := url.Values{"post_id": {postID}}
	var resp api.CommentsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathComments, q), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func (c *Client) DeletePost(ctx context.Context, token, postID string) error {
	return c.doJSON(ctx, http.MethodPost, api.PathDeletePost, token, api.PostIDRequest{PostID: postID}, nil)
}

// UploadStory sends one media file tagged with mediaType ("image" or "video").
func (c *Client) UploadStory(ctx context.Context, token, mediaPath, mediaType string, closeFriendsOnly bool) (*api.UploadStoryResponse, error) {
	fields := map[string]string{
		"media_type":         mediaType,
		"close_friends_only": strconv.FormatBool(closeFriendsOnly),
	}
	var resp api.UploadStoryResponse
	if err := c.doMultipart(ctx, api.PathStories, token, fields, []filePart{{field: "media", path: mediaPath}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ActiveStories(ctx context.Context, token string) ([]api.Story, error) {
	var resp api.StoriesResponse
	if err := c.doJSON(ctx, http.MethodGet, api.PathActiveStories, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Stories, nil
}

func (c *Client) DeleteStory(ctx context.Context, token, storyID string) error {
	return c.doJSON(ctx, http.MethodPost, api.PathDeleteStory, token, api.StoryIDRequest{StoryID: storyID}, nil)
}

// UploadFile stores a single file and returns its public URL.
func (c *Client) UploadFile(ctx context.Context, token, path string) (string, error) {
	var resp api.UploadFileResponse
	if err := c.doMultipart(ctx, api.PathFiles, token, nil, []filePart{{field: "file", path: path}}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) SendMessage(ctx context.Context, token string, req api.SendMessageRequest) (*api.Message, error) {
	var resp api.MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathMessages, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// GetMessages returns the conversation with otherUserID, oldest first.
func (c *Client) GetMessages(ctx context.Context, token, otherUserID string, limit int) ([]api.Message, error) {
	q := url.Values{"user_id": {otherUserID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp api.MessagesResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathMessages, q), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) Follow(ctx context.Context, token, userID string) (*api.FollowResponse, error) {
	var resp api.FollowResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathFollow, token, api.FollowRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Unfollow(ctx context.Context, token, userID string) (*api.FollowResponse, error) {
	var resp api.FollowResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathUnfollow, token, api.FollowRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
