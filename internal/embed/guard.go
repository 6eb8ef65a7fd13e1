// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
)

// GuardOptions configures the resilience wrapper around a provider.
type GuardOptions struct {
	// MaxAttempts is the total number of calls per Embed, including the
	// first. Values below 1 mean 1.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Timeout bounds each individual provider call. Zero disables it.
	Timeout time.Duration
	// FailThreshold is the number of consecutive failed Embeds that trip
	// the breaker. Values below 1 mean 1.
	FailThreshold int
	// Cooldown is how long a tripped provider is skipped.
	Cooldown time.Duration
	// RateLimit caps outbound calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// DefaultGuardOptions returns conservative defaults for remote providers.
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		MaxAttempts:   3,
		InitialWait:   200 * time.Millisecond,
		MaxWait:       2 * time.Second,
		Timeout:       10 * time.Second,
		FailThreshold: 1,
		Cooldown:      DefaultHealthCooldown,
	}
}

// Guard wraps an Embedder with retries, a per-call timeout, an outbound rate
// limit and a circuit breaker. Every terminal failure it returns carries
// the embed.upstream.failure code so callers can classify it with
// sageerr.IsEmbeddingUnavailable.
type Guard struct {
	inner   Embedder
	opts    GuardOptions
	breaker *Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewGuard wraps inner. A nil logger uses slog.Default().
func NewGuard(inner Embedder, opts GuardOptions, logger *slog.Logger) (*Guard, error) {
	if inner == nil {
		return nil, sageerr.New(sageerr.CodeEmbedRequestInvalid, "guard requires an embedder")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultHealthCooldown
	}
	br, err := NewBreaker(opts.FailThreshold, opts.Cooldown)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{
		inner:   inner,
		opts:    opts,
		breaker: br,
		logger:  logger,
		sleep:   sleepCtx,
	}
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return g, nil
}

func (g *Guard) Dimensions() int { return g.inner.Dimensions() }
func (g *Guard) ModelID() string { return g.inner.ModelID() }

// Health reports the provider health snapshot.
func (g *Guard) Health() health.Metrics { return g.breaker.Metrics() }

// Unwrap returns the guarded embedder.
func (g *Guard) Unwrap() Embedder { return g.inner }

func (g *Guard) Close() error { return Close(g.inner) }

// Embed calls the wrapped provider, retrying transient failures with
// exponential backoff and jitter.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.breaker.Allow() {
		m := g.breaker.Metrics()
		fields := []sageerr.Attr{sageerr.Field("model", g.inner.ModelID())}
		if m.CooldownUntil != nil {
			fields = append(fields, sageerr.Field("cooldown_until", *m.CooldownUntil))
		}
		return nil, sageerr.New(sageerr.CodeEmbedUpstreamFailure, "embedding provider is cooling down after a failure", fields...)
	}

	wait := g.opts.InitialWait
	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		vec, err := g.call(ctx, text)
		if err == nil {
			g.breaker.Success()
			return vec, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == g.opts.MaxAttempts {
			break
		}

		g.logger.Debug("embedding attempt failed, retrying",
			"model", g.inner.ModelID(),
			"attempt", attempt,
			"error", err,
		)
		if err := g.sleep(ctx, jitter(wait)); err != nil {
			lastErr = err
			break
		}
		wait *= 2
		if g.opts.MaxWait > 0 && wait > g.opts.MaxWait {
			wait = g.opts.MaxWait
		}
	}

	g.breaker.Failure()
	g.logger.Warn("embedding provider failed",
		"model", g.inner.ModelID(),
		"error", lastErr,
	)
	return nil, Unavailable(lastErr, g.inner.ModelID())
}

// Unavailable maps err onto embed.upstream.failure.
func Unavailable(err error, model string) error {
	if sageerr.IsEmbeddingUnavailable(err) {
		return err
	}
	return sageerr.Reclassify(err, sageerr.CodeEmbedUpstreamFailure, "embedding unavailable",
		sageerr.Field("model", model))
}

func (g *Guard) call(ctx context.Context, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, sageerr.New(sageerr.CodeEmbedResponseInvalid, "provider returned an empty vector")
	}
	if d := g.inner.Dimensions(); d > 0 && len(vec) != d {
		return nil, sageerr.Errorf(sageerr.CodeEmbedResponseInvalid,
			"provider returned %d dimensions, expected %d", len(vec), d)
	}
	return vec, nil
}

// retryable reports whether another attempt could succeed. Malformed
// requests and responses fail the same way every time.
func retryable(err error) bool {
	switch sageerr.CodeOf(err) {
	case sageerr.CodeEmbedRequestInvalid, sageerr.CodeEmbedResponseInvalid:
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
