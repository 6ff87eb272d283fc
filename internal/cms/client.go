// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cms is a read-only client for the Directus REST API that stores
// destinations, articles and companies.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// Default client limits.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxConcurrent    = 50
	DefaultMaxResponseBytes = 10 << 20
	DefaultMaxQueryBytes    = 16 << 10
)

// Recorder receives client metrics. *metrics.Metrics implements it.
type Recorder interface {
	CMSRequest(collection, outcome string, d time.Duration)
	CMSInFlight(delta float64)
}

type nopRecorder struct{}

func (nopRecorder) CMSRequest(string, string, time.Duration) {}
func (nopRecorder) CMSInFlight(float64)                      {}

// BreakerOptions configures the circuit breaker in front of the CMS.
type BreakerOptions struct {
	// ConsecutiveFailures opens the breaker (default 5).
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open (default 30s).
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open (default 1).
	HalfOpenRequests uint32
}

// Options configures a Client.
type Options struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxConcurrent    int
	MaxResponseBytes int64
	MaxQueryBytes    int
	Breaker          BreakerOptions
	Logger           *slog.Logger
	Metrics          Recorder
}

// Meta is the meta object of a Directus response.
type Meta struct {
	FilterCount int `json:"filter_count"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta Meta            `json:"meta"`
}

// Client executes authenticated reads against the CMS.
//
// The number of in-flight calls is capped; calls beyond the cap fail with
// ErrTooManyRequests. Close cancels every in-flight call of the client.
type Client struct {
	baseURL       string
	token         string
	timeout       time.Duration
	maxConcurrent int64
	maxResponse   int64
	maxQuery      int
	logger        *slog.Logger
	metrics       Recorder
	breaker       *gobreaker.CircuitBreaker

	inFlight atomic.Int64
	closed   atomic.Bool

	scope  context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	http      *http.Client
	createdAt time.Time
}

// New creates a Client. It fails with ErrMissingBaseURL when opts.BaseURL is empty.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if opts.MaxQueryBytes <= 0 {
		opts.MaxQueryBytes = DefaultMaxQueryBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}

	scope, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		token:         opts.Token,
		timeout:       opts.Timeout,
		maxConcurrent: int64(opts.MaxConcurrent),
		maxResponse:   opts.MaxResponseBytes,
		maxQuery:      opts.MaxQueryBytes,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		scope:         scope,
		cancel:        cancel,
		http:          newHTTPClient(opts.Timeout),
		createdAt:     time.Now(),
	}
	c.breaker = newBreaker(opts.Breaker, opts.Logger)
	return c, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 20
	return &http.Client{Timeout: timeout, Transport: transport}
}

func newBreaker(opts BreakerOptions, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.HalfOpenRequests == 0 {
		opts.HalfOpenRequests = 1
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cms",
		MaxRequests: opts.HalfOpenRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				isClientError(err) ||
				errors.Is(err, ErrResponseTooLarge) ||
				errors.Is(err, context.Canceled)
		},
	})
}

// Items reads /items/<collection> and decodes the response data into dst.
func (c *Client) Items(ctx context.Context, collection string, q Query, dst any) (Meta, error) {
	encoded, err := q.Encode()
	if err != nil {
		return Meta{}, err
	}
	if len(encoded) > c.maxQuery {
		return Meta{}, fmt.Errorf("%w: %d bytes for %s", ErrRequestTooLarge, len(encoded), collection)
	}

	path := "/items/" + collection
	if encoded != "" {
		path += "?" + encoded
	}

	body, err := c.get(ctx, collection, path)
	if err != nil {
		return Meta{}, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Meta{}, fmt.Errorf("cms: decoding %s response: %w", collection, err)
	}
	if dst != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return Meta{}, fmt.Errorf("cms: decoding %s data: %w", collection, err)
		}
	}
	return env.Meta, nil
}

// Ping checks that the CMS answers /server/ping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "server", "/server/ping")
	return err
}

// get performs one GET through the concurrency ceiling and the breaker.
func (c *Client) get(ctx context.Context, collection, path string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if n := c.inFlight.Add(1); n > c.maxConcurrent {
		c.inFlight.Add(-1)
		c.metrics.CMSRequest(collection, "too_many", 0)
		return nil, ErrTooManyRequests
	}
	c.metrics.CMSInFlight(1)
	defer func() {
		c.inFlight.Add(-1)
		c.metrics.CMSInFlight(-1)
	}()

	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, collection, path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}
	c.metrics.CMSRequest(collection, outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (c *Client) do(ctx context.Context, collection, path string) ([]byte, error) {
	// Tie the call to the client scope as well as the caller's context.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(c.scope, func() { cancel(ErrClosed) })
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("cms: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.mu.RLock()
	hc := c.http
	c.mu.RUnlock()

	resp, err := hc.Do(req)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrClosed) {
			return nil, ErrClosed
		}
		return nil, &RequestError{Collection: collection, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, &RequestError{Collection: collection, Err: err}
	}
	if int64(len(body)) > c.maxResponse {
		return nil, fmt.Errorf("%w: %s exceeded %d bytes", ErrResponseTooLarge, collection, c.maxResponse)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{Status: resp.StatusCode, Collection: collection, Body: string(body)}
	}
	return body, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejection(err):
		return "rejected"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrResponseTooLarge):
		return "too_large"
	default:
		return "error"
	}
}

// InFlight returns the number of calls currently in flight.
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

// Age returns the time since the client was created or last reset.
func (c *Client) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.createdAt)
}

// Stale reports whether the client is older than maxAge.
// A non-positive maxAge never makes the client stale.
func (c *Client) Stale(maxAge time.Duration) bool {
	return maxAge > 0 && c.Age() > maxAge
}

// Reset swaps in a fresh transport and restarts the age clock.
// Calls already in flight finish on the old transport.
func (c *Client) Reset() {
	c.mu.Lock()
	old := c.http
	c.http = newHTTPClient(c.timeout)
	c.createdAt = time.Now()
	c.mu.Unlock()

	old.CloseIdleConnections()
	c.logger.Info("cms client reset")
}

// Close aborts every in-flight call and rejects new ones.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	c.mu.RLock()
	hc := c.http
	c.mu.RUnlock()
	hc.CloseIdleConnections()
	return nil
}
