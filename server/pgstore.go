// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}
}

// InitializeSchema creates the application tables if they do not exist
func (s *PGStore) InitializeSchema(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		stmts := []string{
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	username      TEXT NOT NULL,
	full_name     TEXT NOT NULL DEFAULT '',
	bio           TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	caption    TEXT NOT NULL DEFAULT '',
	image_urls TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS post_likes (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, post_id)
)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS post_saves (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, post_id)
)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments (post_id, created_at)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS stories (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	media_url          TEXT NOT NULL,
	media_type         TEXT NOT NULL,
	close_friends_only BOOLEAN NOT NULL DEFAULT false,
	uploaded_at        TIMESTAMPTZ NOT NULL,
	expires_at         TIMESTAMPTZ NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_stories_expires_at ON stories (expires_at)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	chat_id     TEXT NOT NULL,
	sender_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	text        TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id, created_at)`,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (follower_id, followee_id)
)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
		s.logger.Info("Application tables initialized")
		return nil
	})
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, username, full_name, bio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.PasswordHash, u.Username, u.FullName, u.Bio, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password_hash, username, full_name, bio, created_at`

func (s *PGStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PGStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PGStore) queryUser(ctx context.Context, query string, arg string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Username, &u.FullName, &u.Bio, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

func (s *PGStore) CreatePost(ctx context.Context, p *NewPost) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, user_id, caption, image_urls, created_at) VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.UserID, p.Caption, p.ImageURLs, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (s *PGStore) Feed(ctx context.Context, viewerID string, limit int, before time.Time) ([]api.Post, error) {
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.user_id, u.username, p.caption, p.image_urls, p.created_at,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		       EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1),
		       EXISTS (SELECT 1 FROM post_saves v WHERE v.post_id = p.id AND v.user_id = $1)
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.created_at < $2
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $3
	`, viewerID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	var out []api.Post
	for rows.Next() {
		var (
			p         api.Post
			createdAt time.Time
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.Caption, &p.ImageURLs, &createdAt,
			&p.LikesCount, &p.CommentsCount, &p.IsLiked, &p.IsSaved); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Timestamp = createdAt.UnixMilli()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) PostOwner(ctx context.Context, postID string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query post owner: %w", err)
	}
	return owner, nil
}

func (s *PGStore) DeletePost(ctx context.Context, postID string) ([]string, error) {
	var urls []string
	err := s.pool.QueryRow(ctx, `DELETE FROM posts WHERE id = $1 RETURNING image_urls`, postID).Scan(&urls)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return urls, nil
}

func (s *PGStore) ToggleLike(ctx context.Context, userID, postID string) (bool, int, error) {
	var (
		liked bool
		count int
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		on, err := toggleRow(ctx, tx, "post_likes", userID, postID)
		if err != nil {
			return err
		}
		liked = on
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID).Scan(&count)
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (s *PGStore) ToggleSave(ctx context.Context, userID, postID string) (bool, error) {
	var saved bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		on, err := toggleRow(ctx, tx, "post_saves", userID, postID)
		saved = on
		return err
	})
	return saved, err
}

// toggleRow deletes the (user, post) row of table or inserts it when absent, and
// reports whether it now exists.
func toggleRow(ctx context.Context, tx pgx.Tx, table, userID, postID string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle %s: %w", table, err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `INSERT INTO `+table+` (user_id, post_id) VALUES ($1, $2)`, userID, postID); err != nil {
		return false, fmt.Errorf("failed to toggle %s: %w", table, err)
	}
	return true, nil
}

func (s *PGStore) AddComment(ctx context.Context, c *api.Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (id, post_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.PostID, c.UserID, c.Text, time.UnixMilli(c.Timestamp))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (s *PGStore) Comments(ctx context.Context, postID string) ([]api.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.post_id, c.user_id, u.username, c.text, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var out []api.Comment
	for rows.Next() {
		var (
			c  api.Comment
			at time.Time
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Text, &at); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Timestamp = at.UnixMilli()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateStory(ctx context.Context, st *api.Story) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stories (id, user_id, media_url, media_type, close_friends_only, uploaded_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, st.ID, st.UserID, st.MediaURL, st.MediaType, st.CloseFriendsOnly,
		time.UnixMilli(st.UploadedAt), time.UnixMilli(st.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}
	return nil
}

const storySelect = `
	SELECT s.id, s.user_id, u.username, s.media_url, s.media_type, s.close_friends_only, s.uploaded_at, s.expires_at
	FROM stories s JOIN users u ON u.id = s.user_id`

func scanStory(row pgx.Row) (*api.Story, error) {
	var (
		st                  api.Story
		uploaded, expiresAt time.Time
	)
	if err := row.Scan(&st.ID, &st.UserID, &st.Username, &st.MediaURL, &st.MediaType, &st.CloseFriendsOnly, &uploaded, &expiresAt); err != nil {
		return nil, err
	}
	st.UploadedAt = uploaded.UnixMilli()
	st.ExpiresAt = expiresAt.UnixMilli()
	return &st, nil
}

func (s *PGStore) Story(ctx context.Context, id string) (*api.Story, error) {
	st, err := scanStory(s.pool.QueryRow(ctx, storySelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query story: %w", err)
	}
	return st, nil
}

func (s *PGStore) ActiveStories(ctx context.Context, now time.Time) ([]api.Story, error) {
	rows, err := s.pool.Query(ctx, storySelect+`
		WHERE s.expires_at > $1
		ORDER BY s.user_id, s.uploaded_at DESC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var out []api.Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteStory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreateMessage(ctx context.Context, m *api.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, receiver_id, text, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.ChatID, m.SenderID, m.ReceiverID, m.Text, m.ImageURL, time.UnixMilli(m.Timestamp))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *PGStore) Messages(ctx context.Context, chatID string, limit int) ([]api.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, sender_id, receiver_id, text, image_url, created_at FROM (
			SELECT * FROM messages WHERE chat_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) recent
		ORDER BY created_at, id
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []api.Message
	for rows.Next() {
		var (
			m  api.Message
			at time.Time
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.ImageURL, &at); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = at.UnixMilli()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) SetFollow(ctx context.Context, followerID, followeeID string, follow bool) error {
	var err error
	if follow {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, followerID, followeeID)
	} else {
		_, err = s.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update follow: %w", err)
	}
	return nil
}
