// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daniyalkhawar366/socialsync/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long an issued token stays valid.
const TokenLifetime = 7 * 24 * time.Hour

// JWTAuth issues and verifies HS256 bearer tokens
type JWTAuth struct {
	secret []byte
	now    func() time.Time
	logger *slog.Logger
}

// NewJWTAuth creates a new JWT authenticator
func NewJWTAuth(secret string, logger *slog.Logger) *JWTAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTAuth{secret: []byte(secret), now: time.Now, logger: logger}
}

// Claims carries the user id under "user_id" next to the registered claims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken issues a token for userID valid for TokenLifetime.
func (j *JWTAuth) GenerateToken(userID string) (string, error) {
	return j.generate(userID, TokenLifetime)
}

func (j *JWTAuth) generate(userID string, lifetime time.Duration) (string, error) {
	now := j.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken checks the signature and expiry and returns the claims
func (j *JWTAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("missing user_id in token")
	}
	return claims, nil
}

// GetUserID extracts and verifies the bearer token of r
func (j *JWTAuth) GetUserID(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header required")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", errors.New("bearer token required")
	}

	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return claims.UserID, nil
}

// Middleware rejects requests without a valid token and stores the user id in
// the request context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := j.GetUserID(r)
		if err != nil {
			j.logger.Debug("JWT validation failed", "error", err, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetUserID(r.Context(), userID)))
	})
}
