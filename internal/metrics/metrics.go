// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics defines the Prometheus collectors of the content service.
// Every recording method is safe on a nil *Metrics so components can run
// without a registry in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors.
type Metrics struct {
	cmsRequests   *prometheus.CounterVec
	cmsDuration   *prometheus.HistogramVec
	cmsInFlight   prometheus.Gauge
	cacheRequests *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	logEvents     *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cmsRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbi_cms_requests_total",
				Help: "Total number of CMS requests by collection and outcome",
			},
			[]string{"collection", "outcome"},
		),
		cmsDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tbi_cms_request_duration_seconds",
				Help:    "CMS request latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"collection"},
		),
		cmsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tbi_cms_in_flight",
				Help: "Number of CMS requests currently in flight",
			},
		),
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbi_cache_requests_total",
				Help: "Total number of cached content requests by entity and result",
			},
			[]string{"entity", "result"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbi_content_fallbacks_total",
				Help: "Total number of language fallbacks and decomposed fetches",
			},
			[]string{"entity", "kind"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tbi_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		logEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbi_log_events_total",
				Help: "Total number of warning and error log records by category",
			},
			[]string{"level", "category"},
		),
	}
}

// CMSRequest records one finished CMS call.
func (m *Metrics) CMSRequest(collection, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cmsRequests.WithLabelValues(collection, outcome).Inc()
	m.cmsDuration.WithLabelValues(collection).Observe(d.Seconds())
}

// CMSInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) CMSInFlight(delta float64) {
	if m == nil {
		return
	}
	m.cmsInFlight.Add(delta)
}

// CacheRequest records the outcome of one cached content request.
func (m *Metrics) CacheRequest(entity, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(entity, result).Inc()
}

// Fallback records a language fallback or a decomposed fetch.
func (m *Metrics) Fallback(entity, kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(entity, kind).Inc()
}

// LogEvent records one warning or error log record.
func (m *Metrics) LogEvent(level, category string) {
	if m == nil {
		return
	}
	m.logEvents.WithLabelValues(level, category).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
