// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import (
	"sync"
	"time"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/health"
)

// DefaultHealthCooldown is how long a tripped provider is skipped before a
// probe call is allowed through.
const DefaultHealthCooldown = 30 * time.Second

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards a provider. It opens after threshold consecutive failed
// embeds, rejects calls for the cooldown, then lets a single probe through.
// The probe's outcome closes or re-opens it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state       BreakerState
	consecutive int
	total       int64
	openedAt    time.Time
	lastFailure time.Time
	probing     bool
}

// NewBreaker returns a closed Breaker. A threshold below 1 means 1.
func NewBreaker(threshold int, cooldown time.Duration) (*Breaker, error) {
	if cooldown <= 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"breaker cooldown must be positive, got %s", cooldown)
	}
	return &Breaker{
		threshold: max(threshold, 1),
		cooldown:  cooldown,
		now:       time.Now,
	}, nil
}

// stateLocked resolves an expired open state to half-open.
func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		return BreakerHalfOpen
	}
	return b.state
}

// State returns the current position without side effects.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Allow reports whether a call may proceed. In half-open only one caller
// is admitted until it reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	default:
		return false
	}
}

// Success closes the breaker and resets the consecutive failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	b.state = BreakerClosed
	b.consecutive = 0
	b.probing = false
	b.mu.Unlock()
}

// Failure records a failed call. A failed probe re-opens immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.total++
	b.consecutive++
	b.lastFailure = now
	if b.probing || b.state == BreakerHalfOpen || b.consecutive >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = now
	}
	b.probing = false
}

func (b *Breaker) setClock(fn func() time.Time) {
	b.mu.Lock()
	b.now = fn
	b.mu.Unlock()
}

// Metrics returns a point-in-time snapshot.
func (b *Breaker) Metrics() health.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := health.Metrics{
		FailureCount: b.total,
		Available:    b.stateLocked() != BreakerOpen,
	}
	if b.total > 0 {
		t := b.lastFailure
		m.LastFailureAt = &t
	}
	if b.state == BreakerOpen {
		until := b.openedAt.Add(b.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
