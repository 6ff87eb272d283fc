// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CMSRequest("destinations", "ok", time.Millisecond)
	m.CMSInFlight(1)
	m.CacheRequest("destinations", "hit")
	m.Fallback("articles", "language")
	m.LogEvent("warn", "cache")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CMSRequest("destinations", "ok", 10*time.Millisecond)
	m.CMSRequest("destinations", "ok", 20*time.Millisecond)
	m.CacheRequest("articles", "skip")
	m.Fallback("companies", "decomposed")
	m.LogEvent("error", "cms")
	m.CMSInFlight(1)

	assert.InDelta(t, 2, testutil.ToFloat64(m.cmsRequests.WithLabelValues("destinations", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheRequests.WithLabelValues("articles", "skip")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.fallbacks.WithLabelValues("companies", "decomposed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cmsInFlight), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.logEvents.WithLabelValues("error", "cms")), 0)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/destinations/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, slug := range []string{"toscana", "umbria"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/destinations/"+slug, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/destinations/{slug}", "200"))
	assert.InDelta(t, 2, got, 0)
}
