// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, scopedSize int) *Manager {
	t.Helper()
	res, err := NewCache(Config{DefaultTTL: time.Hour}, quietLogger())
	require.NoError(t, err)

	m := NewManager(ManagerOptions{
		Namespace:  "tbi",
		Backend:    res,
		ScopedSize: scopedSize,
		Logger:     quietLogger(),
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_ScopedTierDisabledByDefault(t *testing.T) {
	m := newTestManager(t, 0)

	assert.Nil(t, m.Scoped)
	assert.Equal(t, BackendMemory, m.Backend())
	assert.Len(t, m.AllStats(), 1)
}

func TestManager_ClearAllKeepsForeignKeys(t *testing.T) {
	m := newTestManager(t, 4)
	ctx := context.Background()

	shared := m.Shared.Cache()
	require.NoError(t, shared.Set(ctx, "tbi:articles:it:1", []byte("1"), 0))
	require.NoError(t, shared.Set(ctx, "other:key", []byte("1"), 0))
	require.NoError(t, m.Scoped.Cache().Set(ctx, "tbi:articles:it:2", []byte("2"), 0))

	require.NoError(t, m.ClearAll(ctx))

	has, _ := shared.Has(ctx, "tbi:articles:it:1")
	assert.False(t, has)
	has, _ = shared.Has(ctx, "other:key")
	assert.True(t, has)
	has, _ = m.Scoped.Cache().Has(ctx, "tbi:articles:it:2")
	assert.False(t, has)
}

func TestManager_TotalStats(t *testing.T) {
	m := newTestManager(t, 4)
	ctx := context.Background()

	_ = m.Shared.Cache().Set(ctx, "tbi:a", []byte("1"), 0)
	_, _ = m.Shared.Cache().Get(ctx, "tbi:a")
	_, _ = m.Scoped.Cache().Get(ctx, "tbi:missing")

	total := m.TotalStats()
	assert.Equal(t, int64(1), total.Hits)
	assert.Equal(t, int64(1), total.Misses)
	assert.InDelta(t, 50.0, total.HitRate, 0.001)
	assert.Len(t, m.AllStats(), 2)
}

func TestManager_TotalStatsByEntity(t *testing.T) {
	m := newTestManager(t, 0)
	ctx := context.Background()

	shared := m.Shared.Cache()
	require.NoError(t, shared.Set(ctx, "tbi:articles:it:1", []byte("abc"), 0))
	_, _ = shared.Get(ctx, "tbi:articles:it:1")
	_, _ = shared.Get(ctx, "tbi:companies:en:2")

	total := m.TotalStats()
	require.Contains(t, total.Entities, "articles")
	assert.Equal(t, EntityStats{Hits: 1, Items: 1, HitRate: 100, Size: 3}, total.Entities["articles"])
	assert.Equal(t, int64(1), total.Entities["companies"].Misses)
}

func TestManager_HealthCheckMemory(t *testing.T) {
	m := newTestManager(t, 0)
	assert.NoError(t, m.HealthCheck(context.Background()))
}
