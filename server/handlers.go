// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/internal/auth"
	"github.com/google/uuid"
)

const (
	maxUploadBytes      = 64 << 20
	defaultFeedLimit    = 20
	maxFeedLimit        = 100
	defaultMessageLimit = 50
	maxMessageLimit     = 500
	storyLifetime       = 24 * time.Hour
)

// Handlers serves the REST API
type Handlers struct {
	store  Store
	jwt    *JWTAuth
	media  *MediaStore
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(store Store, jwtAuth *JWTAuth, media *MediaStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, jwt: jwtAuth, media: media, logger: logger, now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.Envelope{Success: false, Message: message})
}

// writeStoreError maps store errors to status codes
func (h *Handlers) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Store operation failed", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func currentUser(r *http.Request) string {
	userID, _ := auth.GetUserID(r.Context())
	return userID
}

// HandleHealth provides a simple health check endpoint
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "healthy"})
}

func (h *Handlers) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	username := req.Username
	if username == "" {
		username = req.Email[:strings.Index(req.Email, "@")]
	}
	user := &User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Username:     username,
		FullName:     req.FullName,
		Bio:          req.Bio,
		CreatedAt:    h.now(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.writeStoreError(w, err, "user")
		return
	}
	h.issueToken(w, user.ID, http.StatusCreated)
}

func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := h.store.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, ErrNotFound) || (err == nil && !checkPassword(user.PasswordHash, req.Password)) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		h.writeStoreError(w, err, "user")
		return
	}
	h.issueToken(w, user.ID, http.StatusOK)
}

func (h *Handlers) issueToken(w http.ResponseWriter, userID string, status int) {
	token, err := h.jwt.GenerateToken(userID)
	if err != nil {
		h.logger.Error("Failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, api.AuthResponse{Success: true, Token: token, UserID: userID})
}

// saveFiles stores every file and returns their URLs. Files already stored are
// removed when a later one fails.
func (h *Handlers) saveFiles(files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := h.media.Save(fh)
		if err != nil {
			h.deleteMedia(urls...)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (h *Handlers) deleteMedia(urls ...string) {
	for _, url := range urls {
		if err := h.media.Delete(url); err != nil {
			h.logger.Warn("Failed to delete media file", "url", url, "error", err)
		}
	}
}

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return false
	}
	return true
}

func (h *Handlers) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one image is required")
		return
	}
	urls, err := h.saveFiles(files)
	if err != nil {
		h.logger.Error("Failed to store post images", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store images")
		return
	}

	post := &NewPost{
		ID:        uuid.New().String(),
		UserID:    currentUser(r),
		Caption:   r.FormValue("caption"),
		ImageURLs: urls,
		CreatedAt: h.now(),
	}
	if err := h.store.CreatePost(r.Context(), post); err != nil {
		h.deleteMedia(urls...)
		h.writeStoreError(w, err, "post")
		return
	}
	writeJSON(w, http.StatusOK, api.CreatePostResponse{Success: true, PostID: post.ID, Timestamp: post.CreatedAt.UnixMilli()})
}

func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultFeedLimit, maxFeedLimit)
	if !ok {
		return
	}
	var before time.Time
	if s := r.URL.Query().Get("before"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "before must be a unix millisecond timestamp")
			return
		}
		before = time.UnixMilli(ms)
	}

	// One extra row tells whether another page exists.
	posts, err := h.store.Feed(r.Context(), currentUser(r), limit+1, before)
	if err != nil {
		h.writeStoreError(w, err, "feed")
		return
	}
	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}
	if posts == nil {
		posts = []api.Post{}
	}
	writeJSON(w, http.StatusOK, api.FeedResponse{Success: true, Posts: posts, HasMore: hasMore})
}

func (h *Handlers) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	var req api.PostIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostID == "" {
		writeError(w, http.StatusBadRequest, "post_id is required")
		return
	}
	liked, count, err := h.store.ToggleLike(r.Context(), currentUser(r), req.PostID)
	if err != nil {
		h.writeStoreError(w, err, "post")
		return
	}
	writeJSON(w, http.StatusOK, api.ToggleLikeResponse{Success: true, IsLiked: liked, LikesCount: count})
}

func (h *Handlers) HandleToggleSave(w http.ResponseWriter, r *http.Request) {
	var req api.PostIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostID == "" {
		writeError(w, http.StatusBadRequest, "post_id is required")
		return
	}
	saved, err := h.store.ToggleSave(r.Context(), currentUser(r), req.PostID)
	if err != nil {
		h.writeStoreError(w, err, "post")
		return
	}
	writeJSON(w, http.StatusOK, api.ToggleSaveResponse{Success: true, IsSaved: saved})
}

func (h *Handlers) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req api.AddCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostID == "" || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "post_id and text are required")
		return
	}
	userID := currentUser(r)
	c := api.Comment{
		ID:        req.CommentID,
		PostID:    req.PostID,
		UserID:    userID,
		Text:      req.Text,
		Timestamp: req.Timestamp,
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp <= 0 {
		c.Timestamp = h.now().UnixMilli()
	}
	if err := h.store.AddComment(r.Context(), &c); err != nil {
		h.writeStoreError(w, err, "post")
		return
	}
	if user, err := h.store.UserByID(r.Context(), userID); err == nil {
		c.Username = user.Username
	}
	writeJSON(w, http.StatusOK, api.CommentResponse{Success: true, Comment: c})
}

func (h *Handlers) HandleComments(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		writeError(w, http.StatusBadRequest, "post_id is required")
		return
	}
	comments, err := h.store.Comments(r.Context(), postID)
	if err != nil {
		h.writeStoreError(w, err, "comments")
		return
	}
	if comments == nil {
		comments = []api.Comment{}
	}
	writeJSON(w, http.StatusOK, api.CommentsResponse{Success: true, Comments: comments})
}

func (h *Handlers) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	var req api.PostIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner, err := h.store.PostOwner(r.Context(), req.PostID)
	if err != nil {
		h.writeStoreError(w, err, "post")
		return
	}
	if owner != currentUser(r) {
		h.writeStoreError(w, ErrForbidden, "post")
		return
	}
	urls, err := h.store.DeletePost(r.Context(), req.PostID)
	if err != nil {
		h.writeStoreError(w, err, "post")
		return
	}
	h.deleteMedia(urls...)
	writeJSON(w, http.StatusOK, api.Envelope{Success: true})
}

func (h *Handlers) HandleUploadStory(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["media"]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one media file is required")
		return
	}
	mediaType := r.FormValue("media_type")
	if mediaType == "" {
		mediaType = "image"
	}
	if mediaType != "image" && mediaType != "video" {
		writeError(w, http.StatusBadRequest, "media_type must be image or video")
		return
	}
	closeFriends, _ := strconv.ParseBool(r.FormValue("close_friends_only"))

	urls, err := h.saveFiles(files)
	if err != nil {
		h.logger.Error("Failed to store story media", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store media")
		return
	}
	now := h.now()
	story := &api.Story{
		ID:               uuid.New().String(),
		UserID:           currentUser(r),
		MediaURL:         urls[0],
		MediaType:        mediaType,
		CloseFriendsOnly: closeFriends,
		UploadedAt:       now.UnixMilli(),
		ExpiresAt:        now.Add(storyLifetime).UnixMilli(),
	}
	if err := h.store.CreateStory(r.Context(), story); err != nil {
		h.deleteMedia(urls...)
		h.writeStoreError(w, err, "story")
		return
	}
	writeJSON(w, http.StatusOK, api.UploadStoryResponse{
		Success:    true,
		StoryID:    story.ID,
		MediaURL:   story.MediaURL,
		UploadedAt: story.UploadedAt,
		ExpiresAt:  story.ExpiresAt,
	})
}

func (h *Handlers) HandleActiveStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.store.ActiveStories(r.Context(), h.now())
	if err != nil {
		h.writeStoreError(w, err, "stories")
		return
	}
	if stories == nil {
		stories = []api.Story{}
	}
	writeJSON(w, http.StatusOK, api.StoriesResponse{Success: true, Stories: stories})
}

func (h *Handlers) HandleDeleteStory(w http.ResponseWriter, r *http.Request) {
	var req api.StoryIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	story, err := h.store.Story(r.Context(), req.StoryID)
	if err != nil {
		h.writeStoreError(w, err, "story")
		return
	}
	if story.UserID != currentUser(r) {
		h.writeStoreError(w, ErrForbidden, "story")
		return
	}
	if err := h.store.DeleteStory(r.Context(), story.ID); err != nil {
		h.writeStoreError(w, err, "story")
		return
	}
	h.deleteMedia(story.MediaURL)
	writeJSON(w, http.StatusOK, api.Envelope{Success: true})
}

func (h *Handlers) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}
	urls, err := h.saveFiles(files)
	if err != nil {
		h.logger.Error("Failed to store file", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	writeJSON(w, http.StatusOK, api.UploadFileResponse{Success: true, URL: urls[0]})
}

func (h *Handlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req api.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReceiverID == "" || (req.Text == "" && req.ImageURL == "") {
		writeError(w, http.StatusBadRequest, "receiver_id and text or image_url are required")
		return
	}
	sender := currentUser(r)
	msg := api.Message{
		ID:         uuid.New().String(),
		ChatID:     api.ChatID(sender, req.ReceiverID),
		SenderID:   sender,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
		Timestamp:  h.now().UnixMilli(),
	}
	if err := h.store.CreateMessage(r.Context(), &msg); err != nil {
		h.writeStoreError(w, err, "receiver")
		return
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{Success: true, Message: msg})
}

func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	other := r.URL.Query().Get("user_id")
	if other == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultMessageLimit, maxMessageLimit)
	if !ok {
		return
	}
	msgs, err := h.store.Messages(r.Context(), api.ChatID(currentUser(r), other), limit)
	if err != nil {
		h.writeStoreError(w, err, "messages")
		return
	}
	if msgs == nil {
		msgs = []api.Message{}
	}
	writeJSON(w, http.StatusOK, api.MessagesResponse{Success: true, Messages: msgs})
}

func (h *Handlers) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, true)
}

func (h *Handlers) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, false)
}

func (h *Handlers) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	var req api.FollowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	me := currentUser(r)
	if req.UserID == "" || req.UserID == me {
		writeError(w, http.StatusBadRequest, "a different user_id is required")
		return
	}
	if err := h.store.SetFollow(r.Context(), me, req.UserID, follow); err != nil {
		h.writeStoreError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, api.FollowResponse{Success: true, IsFollowing: follow})
}

// queryInt parses an optional positive integer query parameter capped at limit
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, limit int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	if n > limit {
		n = limit
	}
	return n, true
}
