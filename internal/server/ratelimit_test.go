// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{name: "disabled", cfg: RateLimitConfig{}},
		{name: "rate with burst", cfg: RateLimitConfig{RequestsPerSecond: 5, Burst: 10}},
		{name: "negative rate", cfg: RateLimitConfig{RequestsPerSecond: -1}, wantErr: true},
		{name: "rate without burst", cfg: RateLimitConfig{RequestsPerSecond: 5}, wantErr: true},
		{name: "negative visitors", cfg: RateLimitConfig{MaxVisitors: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10000, tt.cfg.MaxVisitors)
		})
	}
}

func TestVisitors_AllowPerIP(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newVisitors(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	v.now = func() time.Time { return now }

	assert.True(t, v.allow("10.0.0.1"))
	assert.True(t, v.allow("10.0.0.1"))
	assert.False(t, v.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, v.allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, v.allow("10.0.0.1"), "one token refills per second")
}

func TestVisitors_Cleanup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newVisitors(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 2})
	v.now = func() time.Time { return now }

	v.allow("stale")
	now = now.Add(20 * time.Minute)
	v.allow("a")
	now = now.Add(time.Second)
	v.allow("b")
	now = now.Add(time.Second)
	v.allow("c")

	evicted := v.cleanup(10 * time.Minute)
	assert.Equal(t, 2, evicted, "stale visitor plus the oldest over the cap")
	assert.Equal(t, 2, v.len())

	v.mu.Lock()
	_, hasA := v.m["a"]
	_, hasC := v.m["c"]
	v.mu.Unlock()
	assert.False(t, hasA)
	assert.True(t, hasC)
}

func TestRateLimitMiddleware(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	mw := rateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, done, slog.Default())
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimitMiddleware_DisabledIsPassThrough(t *testing.T) {
	mw := rateLimitMiddleware(RateLimitConfig{}, nil, slog.Default())
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.NotEqual(t, "not-a-uuid", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(requestIDHeader))
}
