// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"
)

// Tier identifies one of the caches owned by a Manager.
type Tier string

// Cache tiers.
const (
	TierShared Tier = "shared"
	TierScoped Tier = "scoped"
)

// TierStats holds statistics for one cache tier.
type TierStats struct {
	Name    string  `json:"name"`
	Tier    Tier    `json:"tier"`
	Backend Backend `json:"backend"`
	Stats   Stats   `json:"stats"`
}

// Manager owns the content caches: the shared backend (Redis or memory)
// and the optional bounded LRU used for destination-scoped queries.
type Manager struct {
	Shared *Requester
	Scoped *Requester // nil when scoped caching is disabled

	namespace string
	backend   Backend
	shared    Cacher
	scoped    *LRUCache
	logger    *slog.Logger
}

// ManagerOptions configures NewManager.
type ManagerOptions struct {
	Namespace string
	Backend   Result

	// ScopedSize is the capacity of the scoped LRU (0 disables it).
	ScopedSize int
	ScopedTTL  time.Duration

	Logger *slog.Logger
}

// NewManager creates a Manager over the given shared backend.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		Shared:    NewRequester(opts.Backend.Cache, logger),
		namespace: opts.Namespace,
		backend:   opts.Backend.Backend,
		shared:    opts.Backend.Cache,
		logger:    logger,
	}

	if opts.ScopedSize > 0 {
		ttl := opts.ScopedTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		m.scoped = NewLRUCache(opts.ScopedSize, ttl)
		m.Scoped = NewRequester(m.scoped, logger)
	}

	return m
}

// Namespace returns the key namespace of every content entry.
func (m *Manager) Namespace() string {
	return m.namespace
}

// Backend reports which store serves the shared tier.
func (m *Manager) Backend() Backend {
	return m.backend
}

// OnOutcome registers fn on every tier.
func (m *Manager) OnOutcome(fn func(key string, outcome Outcome)) {
	m.Shared.OnOutcome(fn)
	if m.Scoped != nil {
		m.Scoped.OnOutcome(fn)
	}
}

// InvalidatePrefix deletes entries starting with prefix from every tier.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) error {
	if m.scoped != nil {
		_ = m.scoped.DeleteByPrefix(ctx, prefix)
	}
	return m.Shared.Invalidate(ctx, prefix)
}

// ClearAll removes every content entry and resets statistics.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.InvalidatePrefix(ctx, m.namespace+":"); err != nil {
		return err
	}
	if sp, ok := m.shared.(StatsProvider); ok {
		sp.ResetStats()
	}
	if m.scoped != nil {
		m.scoped.ResetStats()
	}
	m.logger.Info("cache cleared", "namespace", m.namespace)
	return nil
}

// AllStats returns statistics for each tier.
func (m *Manager) AllStats() []TierStats {
	var out []TierStats
	if sp, ok := m.shared.(StatsProvider); ok {
		out = append(out, TierStats{
			Name:    "Content cache",
			Tier:    TierShared,
			Backend: m.backend,
			Stats:   sp.Stats(),
		})
	}
	if m.scoped != nil {
		out = append(out, TierStats{
			Name:    "Destination-scoped cache",
			Tier:    TierScoped,
			Backend: BackendMemory,
			Stats:   m.scoped.Stats(),
		})
	}
	return out
}

// TotalStats returns statistics aggregated across tiers.
func (m *Manager) TotalStats() Stats {
	var total Stats
	for _, ts := range m.AllStats() {
		total.Hits += ts.Stats.Hits
		total.Misses += ts.Stats.Misses
		total.Sets += ts.Stats.Sets
		total.Items += ts.Stats.Items
		total.Size += ts.Stats.Size
		if ts.Stats.ResetAt != nil && (total.ResetAt == nil || ts.Stats.ResetAt.After(*total.ResetAt)) {
			total.ResetAt = ts.Stats.ResetAt
		}
		for name, es := range ts.Stats.Entities {
			if total.Entities == nil {
				total.Entities = make(map[string]EntityStats)
			}
			sum := total.Entities[name]
			sum.Hits += es.Hits
			sum.Misses += es.Misses
			sum.Items += es.Items
			sum.Size += es.Size
			sum.HitRate = hitRate(sum.Hits, sum.Misses)
			total.Entities[name] = sum
		}
	}
	total.HitRate = hitRate(total.Hits, total.Misses)
	return total
}

// HealthCheck verifies the shared tier is reachable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if rc, ok := m.shared.(*RedisCache); ok {
		return rc.Ping(ctx)
	}
	if m.shared == nil {
		return nil
	}
	_, err := m.shared.Has(ctx, m.namespace+":health")
	return err
}

// Close releases every tier.
func (m *Manager) Close() error {
	if m.scoped != nil {
		_ = m.scoped.Close()
	}
	if m.shared == nil {
		return nil
	}
	return m.shared.Close()
}
