// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// ReserveSlug claims (tenantID, slug) for pageID. The primary key on
// page_slugs makes the claim atomic; a taken slug yields *model.SlugCollisionError.
func (q *Queries) ReserveSlug(ctx context.Context, tenantID, slug, pageID string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO page_slugs (tenant_id, slug, page_id, reserved_at) VALUES (?, ?, ?, ?)`,
		tenantID, slug, pageID, formatTime(at))
	if isUniqueViolation(err) {
		return &model.SlugCollisionError{TenantID: tenantID, Slug: slug}
	}
	if err != nil {
		return fmt.Errorf("reserving slug %q: %w", slug, err)
	}
	return nil
}

// ReleaseSlug drops the reservation held by pageID, if any.
func (q *Queries) ReleaseSlug(ctx context.Context, tenantID, pageID string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM page_slugs WHERE tenant_id = ? AND page_id = ?`, tenantID, pageID); err != nil {
		return fmt.Errorf("releasing slug of page %s: %w", pageID, err)
	}
	return nil
}

// SlugOwner returns the page currently holding slug, or "" if it is free.
func (q *Queries) SlugOwner(ctx context.Context, tenantID, slug string) (string, error) {
	var pageID string
	err := q.db.QueryRowContext(ctx,
		`SELECT page_id FROM page_slugs WHERE tenant_id = ? AND slug = ?`, tenantID, slug).Scan(&pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up slug %q: %w", slug, err)
	}
	return pageID, nil
}

// AppendSlugHistoryParams describes a retired slug.
type AppendSlugHistoryParams struct {
	TenantID        string
	PageID          string
	Slug            string
	ChangedAt       time.Time
	ChangedBy       string
	RedirectEnabled bool
}

// AppendSlugHistory records a slug the page no longer uses.
func (q *Queries) AppendSlugHistory(ctx context.Context, arg AppendSlugHistoryParams) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO slug_history
		(tenant_id, page_id, slug, changed_at, changed_by, redirect_enabled, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		arg.TenantID, arg.PageID, arg.Slug, formatTime(arg.ChangedAt), arg.ChangedBy, arg.RedirectEnabled)
	if err != nil {
		return fmt.Errorf("recording slug history for page %s: %w", arg.PageID, err)
	}
	return nil
}

// ListSlugHistory returns the slug history of a page, oldest first.
func (q *Queries) ListSlugHistory(ctx context.Context, tenantID, pageID string) ([]model.SlugHistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT slug, changed_at, changed_by, redirect_enabled
		FROM slug_history WHERE tenant_id = ? AND page_id = ?
		ORDER BY changed_at, id`, tenantID, pageID)
	if err != nil {
		return nil, fmt.Errorf("listing slug history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []model.SlugHistoryEntry{}
	for rows.Next() {
		var (
			e         model.SlugHistoryEntry
			changedAt string
		)
		if err := rows.Scan(&e.Slug, &changedAt, &e.ChangedBy, &e.RedirectEnabled); err != nil {
			return nil, fmt.Errorf("scanning slug history: %w", err)
		}
		if e.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slug history: %w", err)
	}
	return entries, nil
}

// FindRedirect returns the page that most recently gave up slug with a redirect,
// provided that page still exists and is not archived. It returns "" if none.
func (q *Queries) FindRedirect(ctx context.Context, tenantID, slug string) (string, error) {
	var pageID string
	err := q.db.QueryRowContext(ctx, `SELECT h.page_id
		FROM slug_history h
		JOIN pages p ON p.id = h.page_id AND p.tenant_id = h.tenant_id
		WHERE h.tenant_id = ? AND h.slug = ? AND h.active = 1 AND h.redirect_enabled = 1
		  AND p.status != ?
		ORDER BY h.changed_at DESC, h.id DESC
		LIMIT 1`, tenantID, slug, string(model.PageStatusArchived)).Scan(&pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving redirect for %q: %w", slug, err)
	}
	return pageID, nil
}

// DeactivateSlugHistory marks every history entry of a page inactive.
func (q *Queries) DeactivateSlugHistory(ctx context.Context, tenantID, pageID string) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE slug_history SET active = 0 WHERE tenant_id = ? AND page_id = ?`, tenantID, pageID); err != nil {
		return fmt.Errorf("deactivating slug history of page %s: %w", pageID, err)
	}
	return nil
}
