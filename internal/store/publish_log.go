// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"
)

// PublishKey returns the idempotency key of a scheduled publication.
func PublishKey(pageID string, scheduledAt time.Time) string {
	return pageID + "@" + formatTime(scheduledAt)
}

// RecordPublishParams describes one scheduled publication.
type RecordPublishParams struct {
	TenantID      string
	PageID        string
	ScheduledAt   time.Time
	VersionNumber int
	PublishedAt   time.Time
}

// RecordPublish claims the idempotency key of a scheduled publication. It
// reports false when the key was already claimed.
func (q *Queries) RecordPublish(ctx context.Context, arg RecordPublishParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO publish_log
		(idempotency_key, page_id, tenant_id, scheduled_at, version_number, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		PublishKey(arg.PageID, arg.ScheduledAt), arg.PageID, arg.TenantID,
		formatTime(arg.ScheduledAt), arg.VersionNumber, formatTime(arg.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("recording publish of page %s: %w", arg.PageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// CountPublishes returns how many scheduled publications were recorded for a page.
func (q *Queries) CountPublishes(ctx context.Context, tenantID, pageID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_log WHERE tenant_id = ? AND page_id = ?`, tenantID, pageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting publishes of page %s: %w", pageID, err)
	}
	return n, nil
}
