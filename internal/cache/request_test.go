// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDestination struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// brokenCache fails every operation, standing in for an unreachable backend.
type brokenCache struct{}

var errBackendDown = errors.New("backend down")

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (brokenCache) Delete(context.Context, string) error         { return errBackendDown }
func (brokenCache) DeleteByPrefix(context.Context, string) error { return errBackendDown }
func (brokenCache) Clear(context.Context) error                  { return errBackendDown }
func (brokenCache) Has(context.Context, string) (bool, error)    { return false, errBackendDown }
func (brokenCache) Close() error                                 { return nil }

func countingCompute(calls *atomic.Int32) func(context.Context) ([]testDestination, error) {
	return func(context.Context) ([]testDestination, error) {
		calls.Add(1)
		return []testDestination{{ID: 1, Type: "region"}}, nil
	}
}

func TestDo_MissThenHit(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())

	var outcomes []Outcome
	r.OnOutcome(func(_ string, o Outcome) { outcomes = append(outcomes, o) })

	var calls atomic.Int32
	ctx := context.Background()

	first, err := Do(ctx, r, "k", time.Minute, false, countingCompute(&calls))
	require.NoError(t, err)
	second, err := Do(ctx, r, "k", time.Minute, false, countingCompute(&calls))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, []Outcome{OutcomeMiss, OutcomeHit}, outcomes)
}

func TestDo_SkipBypassesCache(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())

	var calls atomic.Int32
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := Do(ctx, r, "k", time.Minute, true, countingCompute(&calls))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), calls.Load())
	has, _ := mem.Has(ctx, "k")
	assert.False(t, has, "skipped requests must not write to the cache")
}

func TestDo_BackendFailureDegrades(t *testing.T) {
	r := NewRequester(brokenCache{}, quietLogger())

	var calls atomic.Int32
	got, err := Do(context.Background(), r, "k", time.Minute, false, countingCompute(&calls))

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ComputeErrorNotCached(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())
	ctx := context.Background()

	boom := errors.New("cms down")
	_, err := Do(ctx, r, "k", time.Minute, false, func(context.Context) ([]testDestination, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	has, _ := mem.Has(ctx, "k")
	assert.False(t, has)
}

func TestDo_UndecodableEntryRecomputed(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("{not json"), 0))

	var calls atomic.Int32
	got, err := Do(ctx, r, "k", time.Minute, false, countingCompute(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_CoalescesConcurrentMisses(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]testDestination, error) {
		calls.Add(1)
		<-release
		return []testDestination{{ID: 7}}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([][]testDestination, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Do(context.Background(), r, "k", time.Minute, false, compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		require.Len(t, res, 1)
		assert.Equal(t, int64(7), res[0].ID)
	}
	// Coalesced callers must not share backing arrays.
	results[0][0].ID = 99
	assert.Equal(t, int64(7), results[1][0].ID)
}

func TestDo_CoalescedCallerSurvivesLeaderCancel(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]testDestination, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []testDestination{{ID: 3}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := Do(leaderCtx, r, "k", time.Minute, false, compute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   []testDestination
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := Do(context.Background(), r, "k", time.Minute, false, compute)
		follower <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	require.Len(t, got.v, 1)
	assert.Equal(t, int64(3), got.v[0].ID)
	assert.Equal(t, int32(1), calls.Load())

	has, _ := mem.Has(context.Background(), "k")
	assert.True(t, has, "result is cached even though the first caller left")
}

func TestDo_SharedComputeHasOwnDeadline(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())
	r.SetComputeTimeout(20 * time.Millisecond)

	_, err := Do(context.Background(), r, "k", time.Minute, false, func(ctx context.Context) ([]testDestination, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefresh_OverwritesLiveEntry(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())
	ctx := context.Background()

	var calls atomic.Int32
	_, err := Do(ctx, r, "k", time.Minute, false, countingCompute(&calls))
	require.NoError(t, err)

	fresh, err := Refresh(ctx, r, "k", time.Minute, func(context.Context) ([]testDestination, error) {
		return []testDestination{{ID: 2, Type: "province"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh[0].ID)

	got, err := Do(ctx, r, "k", time.Minute, false, countingCompute(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequester_Invalidate(t *testing.T) {
	mem := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()
	r := NewRequester(mem, quietLogger())
	ctx := context.Background()

	_ = mem.Set(ctx, "tbi:articles:it:1", []byte("1"), 0)
	_ = mem.Set(ctx, "tbi:destinations:it:1", []byte("1"), 0)

	require.NoError(t, r.Invalidate(ctx, "tbi:articles:"))

	has, _ := mem.Has(ctx, "tbi:articles:it:1")
	assert.False(t, has)
	has, _ = mem.Has(ctx, "tbi:destinations:it:1")
	assert.True(t, has)
}
