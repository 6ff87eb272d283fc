// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a size-bounded in-process cache. It holds query shapes whose
// key cardinality is too high for the shared backend, such as queries scoped
// to a single destination.
type LRUCache struct {
	lru        *expirable.LRU[string, lruEntry]
	defaultTTL time.Duration
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most size entries. maxTTL bounds the
// lifetime of every entry; shorter per-entry TTLs passed to Set still apply.
func NewLRUCache(size int, maxTTL time.Duration) *LRUCache {
	if size <= 0 {
		size = 1
	}
	return &LRUCache{
		lru:        expirable.NewLRU[string, lruEntry](size, nil, maxTTL),
		defaultTTL: maxTTL,
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	entry, ok := c.lru.Get(key)
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			c.lru.Remove(key)
		}
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 || ttl > c.defaultTTL {
		ttl = c.defaultTTL
	}

	v := make([]byte, len(value))
	copy(v, value)
	c.lru.Add(key, lruEntry{value: v, expiresAt: time.Now().Add(ttl)})
	c.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.lru.Remove(key)
	return nil
}

// DeleteByPrefix removes all keys starting with the given prefix.
func (c *LRUCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Clear removes all entries from the cache.
func (c *LRUCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.lru.Purge()
	return nil
}

// Has checks if a key exists in the cache without touching its recency.
func (c *LRUCache) Has(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	entry, ok := c.lru.Peek(key)
	return ok && time.Now().Before(entry.expiresAt), nil
}

// Close marks the cache closed and drops all entries.
func (c *LRUCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.lru.Purge()
	}
	return nil
}

// Stats returns current cache statistics.
func (c *LRUCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Items:   c.lru.Len(),
		HitRate: hitRate(hits, misses),
	}
}

// ResetStats resets the cache statistics.
func (c *LRUCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
}

var (
	_ Cacher        = (*LRUCache)(nil)
	_ StatsProvider = (*LRUCache)(nil)
)
