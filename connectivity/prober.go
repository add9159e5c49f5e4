// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package connectivity

import (
	"context"
	"net/http"
	"strings"

	"github.com/daniyalkhawar366/socialsync/api"
)

// HTTPProber treats a 2xx from the backend health endpoint as online.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(baseURL string) *HTTPProber {
	return &HTTPProber{URL: strings.TrimRight(baseURL, "/") + api.PathHealth, Client: http.DefaultClient}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }
