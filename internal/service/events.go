// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the audit trail for page lifecycle operations.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Subject identifies who did what to which page.
type Subject struct {
	TenantID string
	PageID   string
	ActorID  string
}

// EventService records audit events.
type EventService struct {
	queries *store.Queries
	now     func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(queries *store.Queries) *EventService {
	return &EventService{queries: queries, now: time.Now}
}

// WithQueries returns an EventService writing through q, typically a transaction.
func (s *EventService) WithQueries(q *store.Queries) *EventService {
	return &EventService{queries: q, now: s.now}
}

// WithClock returns an EventService stamping events with now.
func (s *EventService) WithClock(now func() time.Time) *EventService {
	return &EventService{queries: s.queries, now: now}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, subject Subject, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		TenantID:  subject.TenantID,
		PageID:    subject.PageID,
		ActorID:   subject.ActorID,
		Metadata:  metadataJSON,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err, "category", category)
		return err
	}
	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, subject Subject, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, subject, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, subject Subject, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, subject, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, subject Subject, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, subject, metadata)
}

// LogPageEvent logs an info-level page lifecycle event.
func (s *EventService) LogPageEvent(ctx context.Context, message string, subject Subject, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryPage, message, subject, metadata)
}

// List returns recent events of a tenant, optionally narrowed to one page
// and category. A non-positive limit defaults to 50.
func (s *EventService) List(ctx context.Context, tenantID, pageID, category string, limit int) ([]model.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.queries.ListEvents(ctx, store.ListEventsParams{
		TenantID: tenantID,
		PageID:   pageID,
		Category: category,
		Limit:    limit,
	})
}

// DeleteOldEvents removes events older than maxAge and returns how many were removed.
func (s *EventService) DeleteOldEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.queries.DeleteEventsBefore(ctx, s.now().UTC().Add(-maxAge))
}
