// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides the application's slog setup and a handler that
// counts warnings and errors per category.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Log categories.
const (
	CategoryAuth    = "auth"
	CategoryContent = "content"
	CategoryStorage = "storage"
	CategoryConfig  = "config"
	CategorySystem  = "system"
)

// Recorder receives one call per counted record.
type Recorder interface {
	RecordLog(level, category string)
}

// MetricsHandler is a slog.Handler that wraps another handler and reports
// records at or above a threshold level to a Recorder.
type MetricsHandler struct {
	inner    slog.Handler
	recorder Recorder
	level    slog.Level
	// category set through WithAttrs, if any
	category string
}

// NewMetricsHandler wraps inner and counts WARN and above.
func NewMetricsHandler(inner slog.Handler, rec Recorder) *MetricsHandler {
	return &MetricsHandler{inner: inner, recorder: rec, level: slog.LevelWarn}
}

// Enabled implements slog.Handler.
func (h *MetricsHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *MetricsHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level && h.recorder != nil {
		h.recorder.RecordLog(levelName(r.Level), h.extractCategory(r))
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *MetricsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	category := h.category
	for _, a := range attrs {
		if a.Key == "category" {
			category = a.Value.String()
		}
	}
	return &MetricsHandler{
		inner:    h.inner.WithAttrs(attrs),
		recorder: h.recorder,
		level:    h.level,
		category: category,
	}
}

// WithGroup implements slog.Handler.
func (h *MetricsHandler) WithGroup(name string) slog.Handler {
	return &MetricsHandler{
		inner:    h.inner.WithGroup(name),
		recorder: h.recorder,
		level:    h.level,
		category: h.category,
	}
}

func levelName(level slog.Level) string {
	if level >= slog.LevelError {
		return "error"
	}
	return "warn"
}

// extractCategory prefers a "category" attribute on the record, then one
// bound with WithAttrs, then guesses from the message.
func (h *MetricsHandler) extractCategory(r slog.Record) string {
	var category string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return false
		}
		return true
	})
	if category != "" {
		return category
	}
	if h.category != "" {
		return h.category
	}

	msg := strings.ToLower(r.Message)
	switch {
	case strings.Contains(msg, "sign") || strings.Contains(msg, "session") || strings.Contains(msg, "auth"):
		return CategoryAuth
	case strings.Contains(msg, "upload") || strings.Contains(msg, "storage") || strings.Contains(msg, "bucket"):
		return CategoryStorage
	case strings.Contains(msg, "product") || strings.Contains(msg, "testimonial") || strings.Contains(msg, "video") || strings.Contains(msg, "setting"):
		return CategoryContent
	case strings.Contains(msg, "config"):
		return CategoryConfig
	default:
		return CategorySystem
	}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
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

// New builds the application logger: text output to w, counted by rec.
// rec may be nil.
func New(w io.Writer, level string, rec Recorder) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(NewMetricsHandler(inner, rec))
}
