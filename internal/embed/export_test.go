// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import "time"

// SetGuardClock overrides the breaker time source.
func SetGuardClock(g *Guard, now func() time.Time) {
	g.breaker.setClock(now)
}

// SetBreakerClock overrides the time source of b.
func SetBreakerClock(b *Breaker, now func() time.Time) {
	b.setClock(now)
}

var CacheKey = cacheKey
