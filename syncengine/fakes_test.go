package syncengine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/apiclient"
	"github.com/daniyalkhawar366/socialsync/localstore"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeIdentity struct {
	token  string
	userID string
}

func (f fakeIdentity) Token(ctx context.Context) (string, error) {
	if f.token == "" {
		return "", ErrNoCredential
	}
	return f.token, nil
}

func (f fakeIdentity) UserID(ctx context.Context) (string, error) {
	if f.userID == "" {
		return "", ErrNoCredential
	}
	return f.userID, nil
}

type remoteCall struct {
	method string
	arg    string
	key    string
}

// fakeRemote records every call and fails the methods listed in fail.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []remoteCall
	fail   map[string]error
	onCall func(method string)

	sentMessages []api.SendMessageRequest
	comments     []api.AddCommentRequest
	postImages   [][]string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{fail: map[string]error{}}
}

func (f *fakeRemote) record(ctx context.Context, method, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, remoteCall{method: method, arg: arg, key: apiclient.IdempotencyKeyFrom(ctx)})
	err := f.fail[method]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(method)
	}
	return err
}

func (f *fakeRemote) setFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *fakeRemote) Calls() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func (f *fakeRemote) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeRemote) count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakeRemote) UploadFile(ctx context.Context, token, path string) (string, error) {
	if err := f.record(ctx, "UploadFile", path); err != nil {
		return "", err
	}
	return "http://media/" + path, nil
}

func (f *fakeRemote) SendMessage(ctx context.Context, token string, req api.SendMessageRequest) (*api.Message, error) {
	if err := f.record(ctx, "SendMessage", req.Text); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sentMessages = append(f.sentMessages, req)
	f.mu.Unlock()
	return &api.Message{ID: "m-" + req.Text, ReceiverID: req.ReceiverID, Text: req.Text, ImageURL: req.ImageURL}, nil
}

func (f *fakeRemote) CreatePost(ctx context.Context, token, caption string, imagePaths []string) (*api.CreatePostResponse, error) {
	if err := f.record(ctx, "CreatePost", caption); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.postImages = append(f.postImages, imagePaths)
	f.mu.Unlock()
	return &api.CreatePostResponse{Success: true, PostID: "srv-post"}, nil
}

func (f *fakeRemote) UploadStory(ctx context.Context, token, mediaPath, mediaType string, closeFriendsOnly bool) (*api.UploadStoryResponse, error) {
	if err := f.record(ctx, "UploadStory", mediaType); err != nil {
		return nil, err
	}
	return &api.UploadStoryResponse{Success: true, StoryID: "srv-story"}, nil
}

func (f *fakeRemote) ToggleLike(ctx context.Context, token, postID string) (*api.ToggleLikeResponse, error) {
	if err := f.record(ctx, "ToggleLike", postID); err != nil {
		return nil, err
	}
	return &api.ToggleLikeResponse{Success: true, IsLiked: true, LikesCount: 1}, nil
}

func (f *fakeRemote) ToggleSave(ctx context.Context, token, postID string) (*api.ToggleSaveResponse, error) {
	if err := f.record(ctx, "ToggleSave", postID); err != nil {
		return nil, err
	}
	return &api.ToggleSaveResponse{Success: true, IsSaved: true}, nil
}

func (f *fakeRemote) AddComment(ctx context.Context, token string, req api.AddCommentRequest) (*api.Comment, error) {
	if err := f.record(ctx, "AddComment", req.Text); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.comments = append(f.comments, req)
	f.mu.Unlock()
	return &api.Comment{ID: req.CommentID, PostID: req.PostID, Text: req.Text}, nil
}

func (f *fakeRemote) Follow(ctx context.Context, token, userID string) (*api.FollowResponse, error) {
	if err := f.record(ctx, "Follow", userID); err != nil {
		return nil, err
	}
	return &api.FollowResponse{Success: true, IsFollowing: true}, nil
}

func (f *fakeRemote) Unfollow(ctx context.Context, token, userID string) (*api.FollowResponse, error) {
	if err := f.record(ctx, "Unfollow", userID); err != nil {
		return nil, err
	}
	return &api.FollowResponse{Success: true}, nil
}

type harness struct {
	store  *localstore.Store
	remote *fakeRemote
	clock  *testClock
	engine *Engine
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, identity fakeIdentity) *harness {
	t.Helper()
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	store, err := localstore.Open(":memory:", localstore.WithClock(clock.Now), localstore.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	remote := newFakeRemote()
	engine := NewEngine(store, remote, identity, nil, quietLogger())
	engine.now = clock.Now
	return &harness{store: store, remote: remote, clock: clock, engine: engine}
}

func signedIn() fakeIdentity {
	return fakeIdentity{token: "tok", userID: "me"}
}
