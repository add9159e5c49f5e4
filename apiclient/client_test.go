package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsBearerAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotKey string
	var gotBody api.PostIDRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, api.PathToggleLike, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get(api.HeaderIdempotencyKey)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(api.ToggleLikeResponse{Success: true, IsLiked: true, LikesCount: 4})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := WithIdempotencyKey(context.Background(), "key-1")
	resp, err := c.ToggleLike(ctx, "tok", "p1")
	require.NoError(t, err)
	require.True(t, resp.IsLiked)
	require.Equal(t, 4, resp.LikesCount)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "key-1", gotKey)
	require.Equal(t, "p1", gotBody.PostID)
}

func TestClient_LoginHasNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(api.AuthResponse{Success: true, Token: "t", UserID: "u1"})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "u1", resp.UserID)
	require.Equal(t, "t", resp.Token)
}

func TestClient_ErrorStatusBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: false, Message: "invalid token"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Follow(context.Background(), "bad", "u2")
	require.Error(t, err)
	require.True(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "invalid token", apiErr.Message)
}

func TestClient_SuccessFalseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: false, Message: "nope"})
	}))
	defer srv.Close()

	err := New(srv.URL).DeletePost(context.Background(), "tok", "p1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
	require.False(t, IsUnauthorized(err))
}

func TestClient_UploadFileMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpegbytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, api.PathFiles, r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		require.Equal(t, "photo.jpg", hdr.Filename)
		require.Equal(t, "jpegbytes", string(data))
		_ = json.NewEncoder(w).Encode(api.UploadFileResponse{Success: true, URL: "http://x/media/photo.jpg"})
	}))
	defer srv.Close()

	url, err := New(srv.URL).UploadFile(context.Background(), "tok", path)
	require.NoError(t, err)
	require.Equal(t, "http://x/media/photo.jpg", url)
}

func TestClient_UploadMissingFileFailsBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL).UploadFile(context.Background(), "tok", filepath.Join(t.TempDir(), "gone.jpg"))
	require.Error(t, err)
	require.False(t, called)
}

func TestClient_CreatePostSendsAllImages(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hi", r.FormValue("caption"))
		require.Len(t, r.MultipartForm.File["images"], 2)
		_ = json.NewEncoder(w).Encode(api.CreatePostResponse{Success: true, PostID: "p9", Timestamp: 42})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).CreatePost(context.Background(), "tok", "hi", []string{a, b})
	require.NoError(t, err)
	require.Equal(t, "p9", resp.PostID)
}

func TestClient_GetFeedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "1700", r.URL.Query().Get("before"))
		require.Empty(t, r.Header.Get(api.HeaderIdempotencyKey))
		_ = json.NewEncoder(w).Encode(api.FeedResponse{Success: true, Posts: []api.Post{{ID: "p1"}}})
	}))
	defer srv.Close()

	ctx := WithIdempotencyKey(context.Background(), "ignored-on-get")
	resp, err := New(srv.URL).GetFeed(ctx, "tok", 10, 1700)
	require.NoError(t, err)
	require.Len(t, resp.Posts, 1)
}
