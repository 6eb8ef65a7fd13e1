// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package embed

import (
	"container/list"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// Cache memoises embeddings in a bounded LRU keyed by model and text.
type Cache struct {
	inner Embedder
	size  int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element

	hits, misses int64
}

type cacheEntry struct {
	key string
	vec []float32
}

// NewCache wraps inner with an LRU of at most size vectors. A non-positive
// size disables caching and returns inner unchanged.
func NewCache(inner Embedder, size int) Embedder {
	if size <= 0 {
		return inner
	}
	return &Cache{
		inner: inner,
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element, size),
	}
}

func (c *Cache) Dimensions() int  { return c.inner.Dimensions() }
func (c *Cache) ModelID() string  { return c.inner.ModelID() }
func (c *Cache) Unwrap() Embedder { return c.inner }
func (c *Cache) Close() error     { return Close(c.inner) }

// Embed returns a copy of the cached vector or computes and stores it.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.inner.ModelID(), text)

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.hits++
		vec := cloneVector(el.Value.(*cacheEntry).vec)
		c.mu.Unlock()
		return vec, nil
	}
	c.misses++
	c.mu.Unlock()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&cacheEntry{key: key, vec: cloneVector(vec)})
		for c.order.Len() > c.size {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	return vec, nil
}

// Stats returns the hit and miss counters and the current size.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.order.Len()
}

func cacheKey(model, text string) string {
	sum := sha1.Sum([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}
