// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging sets up the process logger and provides a slog handler
// that reports warnings and errors to an event recorder.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Event categories.
const (
	CategoryCache     = "cache"
	CategoryCMS       = "cms"
	CategoryContent   = "content"
	CategoryScheduler = "scheduler"
	CategoryHTTP      = "http"
	CategorySystem    = "system"
)

// EventRecorder receives one call per forwarded log record.
type EventRecorder interface {
	LogEvent(level, category string)
}

// ParseLevel maps a TBI_LOG_LEVEL value to a slog level. Unknown values
// are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to w at the given level. A non-nil rec
// also receives WARN and ERROR records.
func New(w io.Writer, level slog.Level, rec EventRecorder) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if rec != nil {
		h = NewEventHandler(h, rec)
	}
	return slog.New(h)
}

// EventHandler is a slog.Handler that wraps another handler and also
// reports WARN and ERROR records to an EventRecorder.
type EventHandler struct {
	inner    slog.Handler
	recorder EventRecorder
	level    slog.Level // Minimum level to forward (default: WARN)
	attrs    []slog.Attr
}

// NewEventHandler creates a new EventHandler that wraps the given handler.
func NewEventHandler(inner slog.Handler, rec EventRecorder) *EventHandler {
	return NewEventHandlerWithLevel(inner, rec, slog.LevelWarn)
}

// NewEventHandlerWithLevel creates a new EventHandler with a custom minimum level.
func NewEventHandlerWithLevel(inner slog.Handler, rec EventRecorder, level slog.Level) *EventHandler {
	return &EventHandler{
		inner:    inner,
		recorder: rec,
		level:    level,
	}
}

// Enabled implements slog.Handler.
func (h *EventHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always forward to the inner handler first
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.recorder.LogEvent(levelName(r.Level), h.category(r))
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventHandler{
		inner:    h.inner.WithAttrs(attrs),
		recorder: h.recorder,
		level:    h.level,
		attrs:    append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

// WithGroup implements slog.Handler.
func (h *EventHandler) WithGroup(name string) slog.Handler {
	return &EventHandler{
		inner:    h.inner.WithGroup(name),
		recorder: h.recorder,
		level:    h.level,
		attrs:    h.attrs,
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	default:
		return "info"
	}
}

// category reads a "component" attribute from the record or the logger,
// or infers one from the message.
func (h *EventHandler) category(r slog.Record) string {
	var category string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			category = a.Value.String()
			return false
		}
		return true
	})
	if category != "" {
		return category
	}
	for _, a := range h.attrs {
		if a.Key == "component" {
			return a.Value.String()
		}
	}

	msg := strings.ToLower(r.Message)
	switch {
	case strings.Contains(msg, "cache") || strings.Contains(msg, "redis"):
		return CategoryCache
	case strings.Contains(msg, "cms") || strings.Contains(msg, "circuit breaker"):
		return CategoryCMS
	case strings.Contains(msg, "translation") || strings.Contains(msg, "decomposed") ||
		strings.Contains(msg, "destination") || strings.Contains(msg, "sitemap"):
		return CategoryContent
	case strings.Contains(msg, "job") || strings.Contains(msg, "scheduler"):
		return CategoryScheduler
	case strings.Contains(msg, "request") || strings.Contains(msg, "server"):
		return CategoryHTTP
	default:
		return CategorySystem
	}
}
