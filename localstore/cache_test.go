package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessagesByChatAndPendingPurge(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	base := clock.Now()

	pendingID := NewPendingID()
	require.True(t, IsPendingID(pendingID))
	require.False(t, IsPendingID("m-server-1"))

	require.NoError(t, s.UpsertMessages(ctx, []*CachedMessage{
		{ID: "m2", ChatID: "c1", SenderID: "u1", ReceiverID: "u2", Text: "second", Timestamp: base.Add(2 * time.Second), IsSent: true},
		{ID: "m1", ChatID: "c1", SenderID: "u2", ReceiverID: "u1", Text: "first", Timestamp: base.Add(time.Second), IsSent: true},
		{ID: pendingID, ChatID: "c1", SenderID: "u1", ReceiverID: "u2", Text: "draft", Timestamp: base.Add(3 * time.Second)},
		{ID: "m9", ChatID: "c2", SenderID: "u3", ReceiverID: "u1", Text: "other chat", Timestamp: base, IsSent: true},
		{ID: NewPendingID(), ChatID: "c2", SenderID: "u1", ReceiverID: "u3", Text: "other draft", Timestamp: base},
	}))

	msgs, err := s.MessagesByChat(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"m1", "m2", pendingID}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	require.False(t, msgs[2].IsSent)

	latest, err := s.MessagesByChat(ctx, "c1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"m2", pendingID}, []string{latest[0].ID, latest[1].ID})

	n, err := s.DeletePendingMessages(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	msgs, err = s.MessagesByChat(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	other, err := s.MessagesByChat(ctx, "c2", 0)
	require.NoError(t, err)
	require.Len(t, other, 2, "other chats keep their pending rows")

	require.NoError(t, s.DeleteMessage(ctx, "m1"))
	_, err = s.GetMessage(ctx, "m1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertMessageReplaces(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m := &CachedMessage{ID: "m1", ChatID: "c1", SenderID: "u1", ReceiverID: "u2", Text: "v1", Timestamp: time.UnixMilli(10)}
	require.NoError(t, s.UpsertMessage(ctx, m))
	m.Text = "v2"
	m.ImageURL = "http://cdn/x.jpg"
	require.NoError(t, s.UpsertMessage(ctx, m))

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "v2", got.Text)
	require.Equal(t, "http://cdn/x.jpg", got.ImageURL)
}

func TestPostsRecentAndEviction(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	base := clock.Now()

	require.NoError(t, s.UpsertPost(ctx, &CachedPost{
		ID: "p-old", UserID: "u1", Caption: "old", ImageURLs: []string{"http://cdn/1.jpg"},
		Timestamp: base, IsSent: true,
	}))
	clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, s.UpsertPosts(ctx, []*CachedPost{
		{ID: "p-new", UserID: "u1", Caption: "new", ImageURLs: []string{"http://cdn/2.jpg", "http://cdn/3.jpg"}, LikesCount: 4, IsLiked: true, Timestamp: clock.Now(), IsSent: true},
		{ID: NewPendingID(), UserID: "u1", Caption: "draft", LocalImagePaths: []string{"/tmp/x.jpg"}, Timestamp: clock.Now().Add(time.Second)},
	}))

	recent, err := s.RecentPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "draft", recent[0].Caption)
	require.Equal(t, []string{"/tmp/x.jpg"}, recent[0].LocalImagePaths)
	require.Empty(t, recent[0].ImageURLs)
	require.Equal(t, "p-new", recent[1].ID)
	require.Equal(t, []string{"http://cdn/2.jpg", "http://cdn/3.jpg"}, recent[1].ImageURLs)
	require.True(t, recent[1].IsLiked)
	require.Equal(t, 4, recent[1].LikesCount)

	n, err := s.DeletePostsCachedBefore(ctx, clock.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = s.GetPost(ctx, "p-old")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePost(ctx, "p-new"))
	_, err = s.GetPost(ctx, "p-new")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoriesActiveAndExpired(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	require.NoError(t, s.UpsertStories(ctx, []*CachedStory{
		{ID: "s1", UserID: "u2", MediaType: "image", UploadedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(22 * time.Hour), IsSent: true},
		{ID: "s2", UserID: "u1", MediaType: "video", UploadedAt: now.Add(-time.Hour), ExpiresAt: now.Add(23 * time.Hour), IsSent: true},
		{ID: "s3", UserID: "u1", MediaType: "image", UploadedAt: now.Add(-30 * time.Minute), ExpiresAt: now.Add(23*time.Hour + 30*time.Minute), CloseFriendsOnly: true, IsSent: true},
		{ID: "s4", UserID: "u1", MediaType: "image", UploadedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour), IsSent: true},
	}))

	active, err := s.ActiveStories(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, []string{"s3", "s2", "s1"}, []string{active[0].ID, active[1].ID, active[2].ID})
	require.True(t, active[0].CloseFriendsOnly)

	n, err := s.DeleteExpiredStories(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = s.GetStory(ctx, "s4")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteStory(ctx, "s1"))
	_, err = s.GetStory(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChats(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	require.NoError(t, s.UpsertChat(ctx, &CachedChat{ID: "c1", OtherUserID: "u2", LastMessage: "hey", LastMessageAt: now.Add(-time.Hour)}))
	require.NoError(t, s.UpsertChat(ctx, &CachedChat{ID: "c2", OtherUserID: "u3", LastMessage: "yo", LastMessageAt: now, UnreadCount: 2}))
	require.NoError(t, s.UpsertMessage(ctx, &CachedMessage{ID: "m1", ChatID: "c1", SenderID: "u2", ReceiverID: "u1", Timestamp: now}))

	chats, err := s.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, "c2", chats[0].ID)
	require.Equal(t, 2, chats[0].UnreadCount)

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "u2", got.OtherUserID)

	require.NoError(t, s.DeleteChat(ctx, "c1"))
	_, err = s.GetChat(ctx, "c1")
	require.ErrorIs(t, err, ErrNotFound)
	msgs, err := s.MessagesByChat(ctx, "c1", 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSessionRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSession(ctx, "u1", "tok-1"))
	require.NoError(t, s.SaveSession(ctx, "u1", "tok-2"))

	rec, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", rec.UserID)
	require.Equal(t, "tok-2", rec.Token)

	require.NoError(t, s.ClearSession(ctx))
	_, err = s.LoadSession(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}
