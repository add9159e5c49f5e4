// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/daniyalkhawar366/socialsync/internal/auth"
	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL is how long a stored response can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// HeaderIdempotentReplay marks a response served from the idempotency store.
const HeaderIdempotentReplay = "Idempotent-Replayed"

// StoredResponse is a captured 2xx response.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers responses by key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, bool, error)
	// Put stores resp unless key already has a response.
	Put(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error
}

// Idempotency replays the first successful response for a repeated
// (user, method, path, Idempotency-Key). It must run after JWT authentication.
type Idempotency struct {
	store  IdempotencyStore
	ttl    time.Duration
	logger *slog.Logger

	inflight sync.Map
}

func NewIdempotency(store IdempotencyStore, ttl time.Duration, logger *slog.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Idempotency{store: store, ttl: ttl, logger: logger}
}

func (i *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := r.Header.Get(api.HeaderIdempotencyKey)
		userID, _ := auth.GetUserID(r.Context())
		if clientKey == "" || r.Method == http.MethodGet || userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := fmt.Sprintf("%s:%s:%s:%s", userID, r.Method, r.URL.Path, clientKey)

		// The key is claimed before the lookup so a request finishing in between
		// cannot be executed twice.
		if _, busy := i.inflight.LoadOrStore(key, struct{}{}); busy {
			writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
			return
		}
		defer i.inflight.Delete(key)

		stored, ok, err := i.store.Get(r.Context(), key)
		if err != nil {
			// Fall through; a store outage must not block writes.
			i.logger.Error("Idempotency lookup failed", "error", err)
		} else if ok {
			i.logger.Debug("Replaying idempotent response", "path", r.URL.Path, "user_id", userID)
			w.Header().Set("Content-Type", stored.ContentType)
			w.Header().Set(HeaderIdempotentReplay, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, capture: true}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 200 || wrapped.statusCode > 299 {
			return
		}
		resp := &StoredResponse{
			Status:      wrapped.statusCode,
			ContentType: w.Header().Get("Content-Type"),
			Body:        wrapped.body,
		}
		if err := i.store.Put(r.Context(), key, resp, i.ttl); err != nil {
			i.logger.Error("Failed to store idempotent response", "error", err)
		}
	})
}

// memorySweepInterval bounds how often Put scans for expired entries.
const memorySweepInterval = time.Minute

// MemoryIdempotencyStore keeps responses in process memory. Expired entries are
// swept on Put.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	now       func() time.Time
	entries   map[string]memoryEntry
	lastSweep time.Time
}

type memoryEntry struct {
	resp    *StoredResponse
	expires time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (*StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.resp, true, nil
}

func (m *MemoryIdempotencyStore) Put(_ context.Context, key string, resp *StoredResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= memorySweepInterval {
		m.sweep(now)
	}
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return nil
	}
	m.entries[key] = memoryEntry{resp: resp, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryIdempotencyStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

// RedisIdempotencyStore shares stored responses between server instances.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idempotency:"}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*StoredResponse, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	var resp StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisIdempotencyStore) Put(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := s.client.SetNX(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}
