// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSchedulerOverride returns the stored schedule of a job, or "" if the
// job runs on its default schedule.
func (q *Queries) GetSchedulerOverride(ctx context.Context, source, name string) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx,
		`SELECT override_schedule FROM scheduler_overrides WHERE source = ? AND name = ?`,
		source, name).Scan(&schedule)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting schedule override %s:%s: %w", source, name, err)
	}
	return schedule, nil
}

// UpsertSchedulerOverride stores a job's schedule override.
func (q *Queries) UpsertSchedulerOverride(ctx context.Context, source, name, schedule string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO scheduler_overrides (source, name, override_schedule, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source, name) DO UPDATE SET
			override_schedule = excluded.override_schedule,
			updated_at = excluded.updated_at`,
		source, name, schedule, formatTime(at))
	if err != nil {
		return fmt.Errorf("saving schedule override %s:%s: %w", source, name, err)
	}
	return nil
}

// DeleteSchedulerOverride removes a job's schedule override.
func (q *Queries) DeleteSchedulerOverride(ctx context.Context, source, name string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM scheduler_overrides WHERE source = ? AND name = ?`, source, name); err != nil {
		return fmt.Errorf("deleting schedule override %s:%s: %w", source, name, err)
	}
	return nil
}
