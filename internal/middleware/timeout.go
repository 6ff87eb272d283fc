// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TimeoutPolicy bounds how long an API request may run.
//
// The handler writes into a buffer. When it returns within its budget the
// buffered response is sent as is; otherwise the buffer is discarded and a
// 504 "timeout" error is sent, the same error the content handlers send
// when the CMS times out.
type TimeoutPolicy struct {
	Default time.Duration

	// Routes maps path prefixes to their own budget. The longest matching
	// prefix wins. A zero budget disables the timeout for that prefix.
	Routes map[string]time.Duration

	// OnTimeout is called after a timeout response was sent.
	OnTimeout func(r *http.Request, budget time.Duration)
}

// Timeout applies the same budget to every request.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return TimeoutPolicy{Default: timeout}.Middleware()
}

// Budget returns the timeout for path.
func (p TimeoutPolicy) Budget(path string) time.Duration {
	budget, matched := p.Default, -1
	for prefix, d := range p.Routes {
		if strings.HasPrefix(path, prefix) && len(prefix) > matched {
			budget, matched = d, len(prefix)
		}
	}
	return budget
}

// Middleware returns the timeout middleware.
func (p TimeoutPolicy) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			budget := p.Budget(r.URL.Path)
			if budget <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), budget)
			defer cancel()

			bw := &bufferedWriter{header: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)

			go func() {
				defer func() {
					if v := recover(); v != nil {
						panicked <- v
					}
				}()
				next.ServeHTTP(bw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case v := <-panicked:
				panic(v)
			case <-done:
				bw.flushTo(w)
			case <-ctx.Done():
				bw.discard()
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					// Client went away.
					return
				}
				WriteAPIError(w, http.StatusGatewayTimeout, "timeout", "Request timed out", nil)
				if p.OnTimeout != nil {
					p.OnTimeout(r, budget)
				}
			}
		})
	}
}

// bufferedWriter holds a response until the handler finishes. Writes after
// discard fail with http.ErrHandlerTimeout.
type bufferedWriter struct {
	mu        sync.Mutex
	header    http.Header
	status    int
	body      bytes.Buffer
	discarded bool
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.header
}

func (bw *bufferedWriter) WriteHeader(code int) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.status == 0 && !bw.discarded {
		bw.status = code
	}
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.discarded {
		return 0, http.ErrHandlerTimeout
	}
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	return bw.body.Write(b)
}

func (bw *bufferedWriter) discard() {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	bw.discarded = true
	bw.body.Reset()
}

// flushTo sends the buffered response to w.
func (bw *bufferedWriter) flushTo(w http.ResponseWriter) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	maps.Copy(w.Header(), bw.header)
	status := bw.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(bw.body.Bytes())
}
