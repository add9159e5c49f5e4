// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds the signed-in user's credential on the device.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daniyalkhawar366/socialsync/localstore"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential means no usable token is available and the user must sign in.
	ErrNoCredential = errors.New("no credential available")
	// ErrExpired is wrapped together with ErrNoCredential when the stored token expired.
	ErrExpired = errors.New("credential expired")
)

// Store persists the credential.
type Store interface {
	SaveSession(ctx context.Context, userID, token string) error
	LoadSession(ctx context.Context) (*localstore.SessionRecord, error)
	ClearSession(ctx context.Context) error
}

// Manager loads, validates and persists the credential.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cached *localstore.SessionRecord
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// SignIn persists a freshly issued token.
func (m *Manager) SignIn(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return fmt.Errorf("user id and token are required")
	}
	if err := m.store.SaveSession(ctx, userID, token); err != nil {
		return err
	}
	m.mu.Lock()
	m.cached = &localstore.SessionRecord{UserID: userID, Token: token, SavedAt: m.now()}
	m.mu.Unlock()
	m.logger.Info("Signed in", "user_id", userID)
	return nil
}

// SignOut forgets the credential.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
	return m.store.ClearSession(ctx)
}

// Token returns the current bearer token. It fails with ErrNoCredential when none is
// stored or the stored one has expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	rec, err := m.record(ctx)
	if err != nil {
		return "", err
	}
	exp, err := ExpiresAt(rec.Token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	if !exp.IsZero() && !m.now().Before(exp) {
		m.logger.Warn("Token expired", "expires_at", exp.Format(time.RFC3339))
		return "", fmt.Errorf("%w: %w", ErrNoCredential, ErrExpired)
	}
	return rec.Token, nil
}

// UserID returns the signed-in user id.
func (m *Manager) UserID(ctx context.Context) (string, error) {
	rec, err := m.record(ctx)
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

func (m *Manager) record(ctx context.Context) (*localstore.SessionRecord, error) {
	m.mu.RLock()
	rec := m.cached
	m.mu.RUnlock()
	if rec != nil {
		return rec, nil
	}

	rec, err := m.store.LoadSession(ctx)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	m.mu.Lock()
	m.cached = rec
	m.mu.Unlock()
	return rec, nil
}

// ExpiresAt reads the exp claim of token without verifying its signature; the
// device does not hold the server secret. A token without exp yields the zero time.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("malformed token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
