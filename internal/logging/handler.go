// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors warnings and errors
// into the page audit log.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Attribute keys lifted out of the record into event columns.
const (
	KeyCategory = "category"
	KeyTenantID = "tenant_id"
	KeyPageID   = "page_id"
	KeyActorID  = "actor_id"
)

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the page_events table.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr
	group   string
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, queries *store.Queries) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, queries, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, queries *store.Queries, level slog.Level) *EventLogHandler {
	return &EventLogHandler{inner: inner, queries: queries, level: level}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

func (h *EventLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

// writeToEventLog stores r. Failures are dropped: logging must not fail the caller.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	params := store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Message:   r.Message,
		CreatedAt: r.Time.UTC(),
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now().UTC()
	}

	metadata := map[string]any{}
	collect := func(a slog.Attr) {
		switch a.Key {
		case KeyCategory:
			params.Category = a.Value.String()
		case KeyTenantID:
			params.TenantID = a.Value.String()
		case KeyPageID:
			params.PageID = a.Value.String()
		case KeyActorID:
			params.ActorID = a.Value.String()
		default:
			metadata[a.Key] = attrValue(a.Value)
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(h.qualify([]slog.Attr{a})[0])
		return true
	})
	if params.Category == "" {
		params.Category = inferCategory(r.Message)
	}
	if b, err := json.Marshal(metadata); err == nil {
		params.Metadata = string(b)
	}

	// The request context may already be cancelled; the event is still wanted.
	_ = h.queries.CreateEvent(context.Background(), params)
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		m := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.String()
	default:
		return v.Any()
	}
}

// inferCategory guesses a category from the message when none was logged.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "lock"):
		return model.EventCategoryLock
	case strings.Contains(msg, "schedul") || strings.Contains(msg, "cron"):
		return model.EventCategorySchedule
	case strings.Contains(msg, "slug"):
		return model.EventCategorySlug
	case strings.Contains(msg, "version"):
		return model.EventCategoryVersion
	case strings.Contains(msg, "page"):
		return model.EventCategoryPage
	default:
		return model.EventCategorySystem
	}
}
