// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcome classifies how a cached request was served.
type Outcome string

// Request outcomes.
const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeSkip  Outcome = "skip"
	OutcomeError Outcome = "error"
)

// Requester implements get-or-compute-and-set on top of a Cacher.
// Concurrent misses for the same key are coalesced into one compute call.
// Cache failures are logged and never returned to the caller.
type Requester struct {
	cache   Cacher
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
	observe func(key string, outcome Outcome)
}

// NewRequester creates a Requester. A nil cache makes every request a skip.
func NewRequester(c Cacher, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{
		cache:   c,
		timeout: DefaultComputeTimeout,
		logger:  logger,
	}
}

// OnOutcome registers a callback invoked once per request with its outcome.
func (r *Requester) OnOutcome(fn func(key string, outcome Outcome)) {
	r.observe = fn
}

// Cache returns the underlying store.
func (r *Requester) Cache() Cacher {
	return r.cache
}

func (r *Requester) record(key string, o Outcome) {
	if r.observe != nil {
		r.observe(key, o)
	}
}

// DefaultComputeTimeout bounds a shared compute call. The call outlives the
// request that started it, so it needs a deadline of its own.
const DefaultComputeTimeout = 30 * time.Second

type computed struct {
	value any
	data  []byte
}

// SetComputeTimeout changes the deadline of shared compute calls.
func (r *Requester) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Do returns the cached value for key, or calls compute and caches its
// result for ttl. With skip set, compute is called directly and the cache
// is neither read nor written.
//
// Concurrent misses share one compute call. That call does not inherit the
// cancellation of the caller that started it: each caller stops waiting
// when its own ctx is done, and the others still get the result.
func Do[T any](ctx context.Context, r *Requester, key string, ttl time.Duration, skip bool, compute func(context.Context) (T, error)) (T, error) {
	if skip || r == nil || r.cache == nil {
		if r != nil {
			r.record(key, OutcomeSkip)
		}
		return compute(ctx)
	}

	data, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		uerr := json.Unmarshal(data, &v)
		if uerr == nil {
			r.record(key, OutcomeHit)
			return v, nil
		}
		r.logger.Warn("discarding undecodable cache entry", "key", key, "error", uerr)
		r.record(key, OutcomeError)
	case errors.Is(err, ErrCacheMiss):
		r.record(key, OutcomeMiss)
	default:
		r.logger.Warn("cache read failed, fetching directly", "key", key, "error", err)
		r.record(key, OutcomeError)
	}

	return load(ctx, r, key, ttl, compute)
}

// Refresh calls compute and overwrites the entry for key, whether or not a
// live entry exists. It is used to rebuild entries ahead of expiry.
func Refresh[T any](ctx context.Context, r *Requester, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if r == nil || r.cache == nil {
		return compute(ctx)
	}
	return load(ctx, r, key, ttl, compute)
}

// load runs compute once per key across concurrent callers and stores the
// encoded result.
func load[T any](ctx context.Context, r *Requester, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	ch := r.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		v, err := compute(shared)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(v)
		if err != nil {
			r.logger.Warn("value not cacheable", "key", key, "error", err)
			return computed{value: v}, nil
		}
		if err := r.cache.Set(shared, key, encoded, ttl); err != nil {
			r.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return computed{value: v, data: encoded}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}

	c := res.Val.(computed)
	if res.Shared && c.data != nil {
		// Every coalesced caller gets its own copy.
		var v T
		if err := json.Unmarshal(c.data, &v); err == nil {
			return v, nil
		}
	}
	v, _ := c.value.(T)
	return v, nil
}

// Invalidate deletes every cached entry whose key starts with prefix.
func (r *Requester) Invalidate(ctx context.Context, prefix string) error {
	if r == nil || r.cache == nil {
		return nil
	}
	return r.cache.DeleteByPrefix(ctx, prefix)
}
