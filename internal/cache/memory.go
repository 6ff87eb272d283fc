// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// otherEntity groups keys that were not built by Context.Key.
const otherEntity = "other"

// MemoryCache is the in-process content cache used when no Redis URL is
// configured. Entries are grouped by the entity segment of their key, so
// statistics and prefix purges work per entity.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	groups  map[string]*entityGroup

	defaultTTL time.Duration
	maxSize    int // 0 = unlimited
	stopCh     chan struct{}
	closed     atomic.Bool

	sets         atomic.Int64
	statsResetAt atomic.Pointer[time.Time]
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	group     *entityGroup
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// entityGroup holds the counters of one entity. items and size are guarded
// by MemoryCache.mu.
type entityGroup struct {
	hits   atomic.Int64
	misses atomic.Int64
	items  int
	size   int64
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // Maximum number of entries (0 = unlimited)
	CleanupInterval time.Duration // Interval for expired entry cleanup (0 = no cleanup)
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		groups:     make(map[string]*entityGroup),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		stopCh:     make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}
	return c
}

// NewSimpleMemoryCache creates an unbounded memory cache swept every minute.
func NewSimpleMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      ttl,
		CleanupInterval: time.Minute,
	})
}

// entityOf returns the stats bucket of key.
func entityOf(key string) string {
	if kc, ok := ParseKey(key); ok {
		return kc.Entity
	}
	return otherEntity
}

// group returns the counters for entity, creating them if needed.
// Callers hold c.mu for writing.
func (c *MemoryCache) group(entity string) *entityGroup {
	g, ok := c.groups[entity]
	if !ok {
		g = &entityGroup{}
		c.groups[entity] = g
	}
	return g
}

// countMiss records a miss without taking the write lock when the entity
// was seen before.
func (c *MemoryCache) countMiss(key string) {
	entity := entityOf(key)
	c.mu.RLock()
	g, ok := c.groups[entity]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		g = c.group(entity)
		c.mu.Unlock()
	}
	g.misses.Add(1)
}

// Get returns a copy of the value stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	var value []byte
	if ok && !e.expired(time.Now()) {
		value = slices.Clone(e.value)
	}
	c.mu.RUnlock()

	if value == nil {
		if ok {
			c.dropIfExpired(key)
		}
		c.countMiss(key)
		return nil, ErrCacheMiss
	}
	e.group.hits.Add(1)
	return value, nil
}

// Set stores a copy of value under key. A zero ttl uses the default TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	e := &memoryEntry{
		value:     slices.Clone(value),
		expiresAt: time.Now().Add(ttl),
	}
	if e.value == nil {
		e.value = []byte{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.unlink(key, old)
	} else if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.makeRoom()
	}
	e.group = c.group(entityOf(key))
	c.entries[key] = e
	e.group.items++
	e.group.size += int64(len(e.value))

	c.sets.Add(1)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.unlink(key, e)
	}
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			c.unlink(k, e)
		}
	}
	return nil
}

// Clear removes every entry. Hit and miss counters are kept.
func (c *MemoryCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	clear(c.entries)
	for _, g := range c.groups {
		g.items, g.size = 0, 0
	}
	c.mu.Unlock()
	return nil
}

// Has reports whether key holds a live entry.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	live := ok && !e.expired(time.Now())
	c.mu.RUnlock()

	if ok && !live {
		c.dropIfExpired(key)
	}
	return live, nil
}

// Close stops the sweeper.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns totals and a per-entity breakdown.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Stats{
		Sets:     c.sets.Load(),
		Items:    len(c.entries),
		ResetAt:  c.statsResetAt.Load(),
		Entities: make(map[string]EntityStats, len(c.groups)),
	}
	for name, g := range c.groups {
		es := EntityStats{
			Hits:   g.hits.Load(),
			Misses: g.misses.Load(),
			Items:  g.items,
			Size:   g.size,
		}
		if es.Hits == 0 && es.Misses == 0 && es.Items == 0 {
			continue
		}
		es.HitRate = hitRate(es.Hits, es.Misses)
		out.Entities[name] = es
		out.Hits += es.Hits
		out.Misses += es.Misses
		out.Size += es.Size
	}
	out.HitRate = hitRate(out.Hits, out.Misses)
	return out
}

// ResetStats zeroes the hit, miss and set counters. Entries are kept.
func (c *MemoryCache) ResetStats() {
	c.mu.RLock()
	for _, g := range c.groups {
		g.hits.Store(0)
		g.misses.Store(0)
	}
	c.mu.RUnlock()
	c.sets.Store(0)
	now := time.Now()
	c.statsResetAt.Store(&now)
}

// Keys returns the stored keys in sorted order, including expired ones not
// yet swept.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries))
}

// unlink removes key and updates its group. Callers hold c.mu.
func (c *MemoryCache) unlink(key string, e *memoryEntry) {
	delete(c.entries, key)
	e.group.items--
	e.group.size -= int64(len(e.value))
}

func (c *MemoryCache) dropIfExpired(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.expired(time.Now()) {
		c.unlink(key, e)
	}
	c.mu.Unlock()
}

// makeRoom drops expired entries and, if the cache is still full, the
// entry closest to expiry. Callers hold c.mu.
func (c *MemoryCache) makeRoom() {
	if c.sweep() > 0 && len(c.entries) < c.maxSize {
		return
	}

	var (
		victim string
		oldest *memoryEntry
	)
	for k, e := range c.entries {
		if oldest == nil || e.expiresAt.Before(oldest.expiresAt) {
			victim, oldest = k, e
		}
	}
	if oldest != nil {
		c.unlink(victim, oldest)
	}
}

// sweep removes expired entries and returns how many it removed.
// Callers hold c.mu.
func (c *MemoryCache) sweep() int {
	now := time.Now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			c.unlink(k, e)
			n++
		}
	}
	return n
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.sweep()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
