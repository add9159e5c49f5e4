package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	posts    map[string]*NewPost
	likes    map[[2]string]bool
	saves    map[[2]string]bool
	comments []api.Comment
	stories  map[string]*api.Story
	messages []api.Message
	follows  map[[2]string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*User{},
		posts:   map[string]*NewPost{},
		likes:   map[[2]string]bool{},
		saves:   map[[2]string]bool{},
		stories: map[string]*api.Story{},
		follows: map[[2]string]bool{},
	}
}

func (m *memStore) username(id string) string {
	if u, ok := m.users[id]; ok {
		return u.Username
	}
	return ""
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreatePost(_ context.Context, p *NewPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memStore) Feed(_ context.Context, viewerID string, limit int, before time.Time) ([]api.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []api.Post
	for _, p := range m.posts {
		if !before.IsZero() && !p.CreatedAt.Before(before) {
			continue
		}
		likes, comments := 0, 0
		for k := range m.likes {
			if k[1] == p.ID {
				likes++
			}
		}
		for _, c := range m.comments {
			if c.PostID == p.ID {
				comments++
			}
		}
		out = append(out, api.Post{
			ID:            p.ID,
			UserID:        p.UserID,
			Username:      m.username(p.UserID),
			Caption:       p.Caption,
			ImageURLs:     p.ImageURLs,
			LikesCount:    likes,
			CommentsCount: comments,
			IsLiked:       m.likes[[2]string{viewerID, p.ID}],
			IsSaved:       m.saves[[2]string{viewerID, p.ID}],
			Timestamp:     p.CreatedAt.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PostOwner(_ context.Context, postID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return "", ErrNotFound
	}
	return p.UserID, nil
}

func (m *memStore) DeletePost(_ context.Context, postID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.posts, postID)
	return p.ImageURLs, nil
}

func (m *memStore) toggle(set map[[2]string]bool, userID, postID string) (bool, error) {
	if _, ok := m.posts[postID]; !ok {
		return false, ErrNotFound
	}
	k := [2]string{userID, postID}
	if set[k] {
		delete(set, k)
		return false, nil
	}
	set[k] = true
	return true, nil
}

func (m *memStore) ToggleLike(_ context.Context, userID, postID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	liked, err := m.toggle(m.likes, userID, postID)
	if err != nil {
		return false, 0, err
	}
	n := 0
	for k := range m.likes {
		if k[1] == postID {
			n++
		}
	}
	return liked, n, nil
}

func (m *memStore) ToggleSave(_ context.Context, userID, postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(m.saves, userID, postID)
}

func (m *memStore) AddComment(_ context.Context, c *api.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[c.PostID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.comments {
		if existing.ID == c.ID {
			return nil
		}
	}
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memStore) Comments(_ context.Context, postID string) ([]api.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []api.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			c.Username = m.username(c.UserID)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *memStore) CreateStory(_ context.Context, s *api.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.stories[s.ID] = &cp
	return nil
}

func (m *memStore) Story(_ context.Context, id string) (*api.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ActiveStories(_ context.Context, now time.Time) ([]api.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []api.Story
	for _, s := range m.stories {
		if s.ExpiresAt > now.UnixMilli() {
			cp := *s
			cp.Username = m.username(s.UserID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].UploadedAt > out[j].UploadedAt
	})
	return out, nil
}

func (m *memStore) DeleteStory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[id]; !ok {
		return ErrNotFound
	}
	delete(m.stories, id)
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *api.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[msg.ReceiverID]; !ok {
		return ErrNotFound
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) Messages(_ context.Context, chatID string, limit int) ([]api.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []api.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) SetFollow(_ context.Context, followerID, followeeID string, follow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[followeeID]; !ok {
		return ErrNotFound
	}
	k := [2]string{followerID, followeeID}
	if follow {
		m.follows[k] = true
	} else {
		delete(m.follows, k)
	}
	return nil
}

func (m *memStore) isFollowing(followerID, followeeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follows[[2]string{followerID, followeeID}]
}
