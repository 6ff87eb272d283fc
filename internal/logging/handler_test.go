// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

type event struct {
	level    string
	category string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) LogEvent(level, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{level, category})
}

func (r *recorder) only(t *testing.T) event {
	t.Helper()
	if len(r.events) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(r.events), r.events)
	}
	return r.events[0]
}

func TestEventHandler_Handle_ErrorLevel(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandler(discardHandler{}, rec))

	logger.Error("cms request failed", "collection", "articles")

	if got := rec.only(t); got != (event{"error", CategoryCMS}) {
		t.Errorf("event = %+v", got)
	}
}

func TestEventHandler_Handle_WarnLevel(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandler(discardHandler{}, rec))

	logger.Warn("redis unavailable, using memory cache")

	if got := rec.only(t); got != (event{"warn", CategoryCache}) {
		t.Errorf("event = %+v", got)
	}
}

func TestEventHandler_Handle_InfoLevel_NotCaptured(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandler(discardHandler{}, rec))

	logger.Info("server started")
	logger.Debug("cache skipped")

	if len(rec.events) != 0 {
		t.Errorf("got %d events, want 0", len(rec.events))
	}
}

func TestEventHandler_Handle_CustomLevel(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandlerWithLevel(discardHandler{}, rec, slog.LevelError))

	logger.Warn("translation missing")
	logger.Error("sitemap build failed")

	if got := rec.only(t); got != (event{"error", CategoryContent}) {
		t.Errorf("event = %+v", got)
	}
}

func TestEventHandler_CategoryInference(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"cache invalidation failed", CategoryCache},
		{"cms returned 500", CategoryCMS},
		{"circuit breaker opened", CategoryCMS},
		{"decomposed fetch failed", CategoryContent},
		{"destination hierarchy inconsistent", CategoryContent},
		{"sitemap warm-up job failed", CategoryContent},
		{"job panicked", CategoryScheduler},
		{"request timed out", CategoryHTTP},
		{"disk full", CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			rec := &recorder{}
			slog.New(NewEventHandler(discardHandler{}, rec)).Warn(tt.msg)

			if got := rec.only(t).category; got != tt.want {
				t.Errorf("category = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestEventHandler_ExplicitComponent(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandler(discardHandler{}, rec))

	logger.Warn("cache miss storm", "component", "scheduler")

	if got := rec.only(t).category; got != CategoryScheduler {
		t.Errorf("category = %q; want %q", got, CategoryScheduler)
	}
}

func TestEventHandler_WithAttrs(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewEventHandler(discardHandler{}, rec)).With("component", CategoryHTTP)

	logger.Error("cache write failed")

	if got := rec.only(t).category; got != CategoryHTTP {
		t.Errorf("category = %q; want %q", got, CategoryHTTP)
	}
}

func TestEventHandler_WithGroup(t *testing.T) {
	rec := &recorder{}
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewEventHandler(inner, rec)).WithGroup("req")

	logger.Warn("request slow", "path", "/api/v1/articles")

	if got := rec.only(t).category; got != CategoryHTTP {
		t.Errorf("category = %q; want %q", got, CategoryHTTP)
	}
	if !strings.Contains(buf.String(), "req.path=/api/v1/articles") {
		t.Errorf("inner handler output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	logger := New(&buf, slog.LevelWarn, rec)

	logger.Info("server started")
	logger.Warn("cache degraded")

	if strings.Contains(buf.String(), "server started") {
		t.Error("info record should be filtered")
	}
	if !strings.Contains(buf.String(), "cache degraded") {
		t.Error("warn record missing")
	}
	rec.only(t)

	if _, ok := New(&buf, slog.LevelInfo, nil).Handler().(*EventHandler); ok {
		t.Error("New without recorder should not wrap the handler")
	}
}
