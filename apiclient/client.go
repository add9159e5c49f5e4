// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package apiclient is the device-side HTTP client for the social backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daniyalkhawar366/socialsync/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/daniyalkhawar366/socialsync/apiclient"

// APIError is returned for non-2xx responses and for 2xx bodies with success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client talks to the backend over JSON/HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTracer sets the tracer used for client spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second}, // media uploads can be slow
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches key to every write request issued with ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFrom returns the key attached with WithIdempotencyKey, or "".
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// doJSON sends body (if non-nil) as JSON and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, token, "application/json", reader, out)
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	url := c.BaseURL + path
	ctx, span := c.tracer.Start(ctx, method+" "+strings.SplitN(path, "?", 2)[0], trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := IdempotencyKeyFrom(ctx); key != "" && method != http.MethodGet {
		req.Header.Set(api.HeaderIdempotencyKey, key)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env api.Envelope
	_ = json.Unmarshal(data, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Debug("Request failed", "method", method, "path", path, "status", resp.StatusCode, "message", msg)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
