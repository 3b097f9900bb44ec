// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// CreateEventParams describes an audit event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	TenantID  string
	PageID    string
	ActorID   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent appends an audit event.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	metadata := arg.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO page_events
		(level, category, message, tenant_id, page_id, actor_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Level, arg.Category, arg.Message, arg.TenantID, arg.PageID, arg.ActorID,
		metadata, formatTime(arg.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// ListEventsParams filters the audit log.
type ListEventsParams struct {
	TenantID string
	PageID   string
	Category string
	Limit    int
}

// ListEvents returns audit events, newest first.
func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]model.Event, error) {
	query := `SELECT id, level, category, message, tenant_id, page_id, actor_id, metadata, created_at
		FROM page_events WHERE tenant_id = ?`
	args := []any{arg.TenantID}
	if arg.PageID != "" {
		query += ` AND page_id = ?`
		args = append(args, arg.PageID)
	}
	if arg.Category != "" {
		query += ` AND category = ?`
		args = append(args, arg.Category)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, arg.Limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []model.Event{}
	for rows.Next() {
		var (
			e         model.Event
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.TenantID,
			&e.PageID, &e.ActorID, &e.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes audit events created before cutoff.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM page_events WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}
	return res.RowsAffected()
}
