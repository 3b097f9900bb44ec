// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func newTestLogger(t *testing.T) (*slog.Logger, *store.Queries) {
	t.Helper()
	q := testutil.TestStore(t).Queries()
	return slog.New(NewEventLogHandler(discardHandler{}, q)), q
}

func listEvents(t *testing.T, q *store.Queries, tenantID string) []model.Event {
	t.Helper()
	events, err := q.ListEvents(context.Background(), store.ListEventsParams{TenantID: tenantID, Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func TestEventLogHandler_Handle_ErrorLevel(t *testing.T) {
	logger, q := newTestLogger(t)

	logger.Error("database connection failed", "host", "localhost", "port", 5432)

	events := listEvents(t, q, "")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Level != model.EventLevelError {
		t.Errorf("Level = %q, want %q", events[0].Level, model.EventLevelError)
	}
	if events[0].Message != "database connection failed" {
		t.Errorf("Message = %q, want %q", events[0].Message, "database connection failed")
	}
	if events[0].Category != model.EventCategorySystem {
		t.Errorf("Category = %q, want %q", events[0].Category, model.EventCategorySystem)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(events[0].Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["host"] != "localhost" {
		t.Errorf("metadata host = %v, want localhost", meta["host"])
	}
	if meta["port"] != float64(5432) {
		t.Errorf("metadata port = %v, want 5432", meta["port"])
	}
}

func TestEventLogHandler_Handle_WarnLevel(t *testing.T) {
	logger, q := newTestLogger(t)

	logger.Warn("slow query detected", "duration_ms", 5000)

	events := listEvents(t, q, "")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Level != model.EventLevelWarning {
		t.Errorf("Level = %q, want %q", events[0].Level, model.EventLevelWarning)
	}
}

func TestEventLogHandler_Handle_InfoSkipped(t *testing.T) {
	logger, q := newTestLogger(t)

	logger.Info("page created")
	logger.Debug("cron: tick")

	if events := listEvents(t, q, ""); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	q := testutil.TestStore(t).Queries()
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, q, slog.LevelError))

	logger.Warn("ignored warning")
	logger.Error("kept error")

	events := listEvents(t, q, "")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Message != "kept error" {
		t.Errorf("Message = %q, want %q", events[0].Message, "kept error")
	}
}

func TestEventLogHandler_SubjectAttributes(t *testing.T) {
	logger, q := newTestLogger(t)

	logger.With(KeyTenantID, "acme").Warn("edit lock broken",
		KeyPageID, "p-1", KeyActorID, "admin", KeyCategory, model.EventCategoryLock,
		"error", errors.New("lease lost"))

	events := listEvents(t, q, "acme")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.PageID != "p-1" || e.ActorID != "admin" {
		t.Errorf("subject = (%q, %q), want (p-1, admin)", e.PageID, e.ActorID)
	}
	if e.Category != model.EventCategoryLock {
		t.Errorf("Category = %q, want %q", e.Category, model.EventCategoryLock)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["error"] != "lease lost" {
		t.Errorf("metadata error = %v, want %q", meta["error"], "lease lost")
	}
	if _, ok := meta[KeyPageID]; ok {
		t.Error("page_id should be stored as a column, not metadata")
	}
}

func TestEventLogHandler_Groups(t *testing.T) {
	logger, q := newTestLogger(t)

	logger.WithGroup("sweep").With("batch", 3).Error("scheduled job failed", "job", "publish")

	events := listEvents(t, q, "")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(events[0].Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["sweep.batch"] != float64(3) {
		t.Errorf("sweep.batch = %v, want 3", meta["sweep.batch"])
	}
	if meta["sweep.job"] != "publish" {
		t.Errorf("sweep.job = %v, want publish", meta["sweep.job"])
	}
	if events[0].Category != model.EventCategorySchedule {
		t.Errorf("Category = %q, want %q", events[0].Category, model.EventCategorySchedule)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Lock expired", model.EventCategoryLock},
		{"scheduled publish failed", model.EventCategorySchedule},
		{"slug reserved", model.EventCategorySlug},
		{"pruning versions", model.EventCategoryVersion},
		{"page deleted", model.EventCategoryPage},
		{"disk full", model.EventCategorySystem},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.msg); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
