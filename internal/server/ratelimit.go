// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted during cleanup. Default: 10000.
	MaxVisitors int
}

// Validate checks the configuration and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return sageerr.Errorf(sageerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return sageerr.Errorf(sageerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return sageerr.Errorf(sageerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors tracks one token bucket per client IP.
type visitors struct {
	cfg RateLimitConfig
	mu  sync.Mutex
	m   map[string]*visitor
	now func() time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, m: make(map[string]*visitor), now: time.Now}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, ok := v.m[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.m[ip] = vis
	}
	vis.lastSeen = v.now()
	return vis.limiter.AllowN(vis.lastSeen, 1)
}

// cleanup drops visitors idle for longer than staleAfter and enforces
// MaxVisitors. It returns the number evicted.
func (v *visitors) cleanup(staleAfter time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	evicted := 0
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(v.m))
	for ip, vis := range v.m {
		if now.Sub(vis.lastSeen) > staleAfter {
			delete(v.m, ip)
			evicted++
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: vis.lastSeen})
	}

	if v.cfg.MaxVisitors > 0 && len(entries) > v.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		for _, e := range entries[:len(entries)-v.cfg.MaxVisitors] {
			delete(v.m, e.ip)
			evicted++
		}
	}
	return evicted
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.m)
}

// rateLimitMiddleware enforces per-IP limits. It is a pass-through when
// cfg.RequestsPerSecond is zero. done stops the cleanup goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	v := newVisitors(cfg)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := v.cleanup(10 * time.Minute); n > 0 {
					logger.Debug("rate limiter evicted visitors", "evicted", n, "remaining", v.len())
				}
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !v.allow(ip) {
				logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
