// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWriteAPIError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAPIError(w, http.StatusBadRequest, "validation_error", "Invalid input", map[string]string{
		"field": "limit",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}

	var resp APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Error.Code != "validation_error" {
		t.Errorf("expected code 'validation_error', got %s", resp.Error.Code)
	}
	if resp.Error.Message != "Invalid input" {
		t.Errorf("expected message 'Invalid input', got %s", resp.Error.Message)
	}
	if resp.Error.Details["field"] != "limit" {
		t.Errorf("expected details.field 'limit', got %s", resp.Error.Details["field"])
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	rl := NewGlobalRateLimiter(2, 2)
	handler := rl.Middleware()(okHandler())

	// First few requests should succeed
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/v1/destinations", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected status %d, got %d", i, http.StatusOK, w.Code)
		}
	}

	// Next request should be rate limited
	req := httptest.NewRequest("GET", "/api/v1/destinations", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGlobalRateLimiter_DifferentIPs(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 1)
	handler := rl.Middleware()(okHandler())

	// First IP exhausts its limit
	req := httptest.NewRequest("GET", "/api/v1/articles", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Second IP should still be able to make requests
	req = httptest.NewRequest("GET", "/api/v1/articles", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("second IP: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestGlobalRateLimiter_SamePortlessClient(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 1)
	handler := rl.Middleware()(okHandler())

	// Two connections from one host share a limiter.
	for i, addr := range []string{"10.1.1.1:1000", "10.1.1.1:2000"} {
		req := httptest.NewRequest("GET", "/api/v1/articles", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Errorf("request %d: expected status %d, got %d", i, want, w.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1:12345", "192.168.1.1"},
		{"remote addr without port", nil, "192.168.1.1", "192.168.1.1"},
		{"x-real-ip", map[string]string{"X-Real-IP": "10.0.0.1"}, "127.0.0.1:1", "10.0.0.1"},
		{"x-forwarded-for chain", map[string]string{"X-Forwarded-For": "10.0.0.2, 172.16.0.1"}, "127.0.0.1:1", "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLimiterCache_Evicts(t *testing.T) {
	lc := newLimiterCache[string](1, 1, 2)

	first := lc.get("a")
	if lc.get("a") != first {
		t.Error("expected the same limiter for the same key")
	}
	lc.get("b")
	lc.get("c")

	if n := lc.len(); n != 2 {
		t.Errorf("len() = %d, want 2", n)
	}
	if lc.get("a") == first {
		t.Error("expected evicted key to get a fresh limiter")
	}
}
