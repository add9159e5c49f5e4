// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ServerConfig holds configuration for the server
type ServerConfig struct {
	DatabaseURL    string
	JWTSecret      string
	RedisAddr      string // empty keeps idempotency records in memory
	MediaDir       string
	PublicBaseURL  string
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// ServerComponents holds the initialized server components
type ServerComponents struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Store   Store
	JWTAuth *JWTAuth
	Handler http.Handler
	Logger  *slog.Logger
}

// Router bundles what NewRouter needs.
type Router struct {
	Handlers    *Handlers
	JWTAuth     *JWTAuth
	Idempotency *Idempotency
	Media       *MediaStore
	Logger      *slog.Logger
}

// NewRouter wires every route with CORS, panic recovery and request logging.
// Authenticated writes pass through the idempotency middleware.
func NewRouter(rt Router) http.Handler {
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}
	h := rt.Handlers
	authed := func(fn http.HandlerFunc) http.Handler {
		return rt.JWTAuth.Middleware(rt.Idempotency.Middleware(fn))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, h.HandleHealth)
	mux.HandleFunc("POST "+api.PathSignup, h.HandleSignup)
	mux.HandleFunc("POST "+api.PathLogin, h.HandleLogin)

	mux.Handle("POST "+api.PathPosts, authed(h.HandleCreatePost))
	mux.Handle("GET "+api.PathFeed, authed(h.HandleFeed))
	mux.Handle("POST "+api.PathToggleLike, authed(h.HandleToggleLike))
	mux.Handle("POST "+api.PathToggleSave, authed(h.HandleToggleSave))
	mux.Handle("POST "+api.PathComments, authed(h.HandleAddComment))
	mux.Handle("GET "+api.PathComments, authed(h.HandleComments))
	mux.Handle("POST "+api.PathDeletePost, authed(h.HandleDeletePost))

	mux.Handle("POST "+api.PathStories, authed(h.HandleUploadStory))
	mux.Handle("GET "+api.PathActiveStories, authed(h.HandleActiveStories))
	mux.Handle("POST "+api.PathDeleteStory, authed(h.HandleDeleteStory))
	mux.Handle("POST "+api.PathFiles, authed(h.HandleUploadFile))

	mux.Handle("POST "+api.PathMessages, authed(h.HandleSendMessage))
	mux.Handle("GET "+api.PathMessages, authed(h.HandleMessages))
	mux.Handle("POST "+api.PathFollow, authed(h.HandleFollow))
	mux.Handle("POST "+api.PathUnfollow, authed(h.HandleUnfollow))

	if rt.Media != nil {
		mux.Handle("GET "+api.PathMedia, http.StripPrefix(api.PathMedia, http.FileServer(http.Dir(rt.Media.Dir()))))
	}

	return CORSMiddleware(LoggingMiddleware(RecoverMiddleware(mux, rt.Logger), rt.Logger))
}

// SetupServer connects to PostgreSQL (and Redis when configured), creates the
// schema and builds the HTTP handler
func SetupServer(ctx context.Context, config *ServerConfig) (*ServerComponents, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPGStore(pool, logger)
	if err := store.InitializeSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	components := &ServerComponents{Pool: pool, Store: store, Logger: logger}

	var idemStore IdempotencyStore = NewMemoryIdempotencyStore()
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			components.Close()
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		components.Redis = rdb
		idemStore = NewRedisIdempotencyStore(rdb)
		logger.Info("Idempotency records stored in Redis", "addr", config.RedisAddr)
	}

	media, err := NewMediaStore(config.MediaDir, config.PublicBaseURL)
	if err != nil {
		components.Close()
		return nil, err
	}

	components.JWTAuth = NewJWTAuth(config.JWTSecret, logger)
	components.Handler = NewRouter(Router{
		Handlers:    NewHandlers(store, components.JWTAuth, media, logger),
		JWTAuth:     components.JWTAuth,
		Idempotency: NewIdempotency(idemStore, config.IdempotencyTTL, logger),
		Media:       media,
		Logger:      logger,
	})
	return components, nil
}

// Close shuts down the server components and cleans up resources
func (sc *ServerComponents) Close() {
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
	if sc.Pool != nil {
		sc.Pool.Close()
	}
}
