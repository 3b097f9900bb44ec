// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// ErrStaleWrite is returned by UpdatePage when the row no longer carries the
// expected etag and version.
var ErrStaleWrite = errors.New("stale page write")

const pageColumns = `id, tenant_id, title, slug, blocks, content, status, author_id,
	last_modified_by, seo, settings, etag, current_version, published_version_id,
	published_at, scheduled_at, schedule_attempts, schedule_last_error, schedule_failed,
	schedule_next_attempt_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (model.Page, error) {
	var (
		p                                   model.Page
		status                              string
		blocks, seo, settings               string
		publishedVersionID                  sql.NullString
		publishedAt, scheduledAt, nextRetry sql.NullString
		attempts                            int
		lastError                           string
		failed                              bool
		createdAt, updatedAt                string
	)
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.Title, &p.Slug, &blocks, &p.Content, &status, &p.AuthorID,
		&p.LastModifiedBy, &seo, &settings, &p.ETag, &p.CurrentVersion, &publishedVersionID,
		&publishedAt, &scheduledAt, &attempts, &lastError, &failed,
		&nextRetry, &createdAt, &updatedAt,
	); err != nil {
		return model.Page{}, err
	}

	p.Status = model.PageStatus(status)
	p.PublishedVersionID = publishedVersionID.String

	if err := json.Unmarshal([]byte(blocks), &p.Blocks); err != nil {
		return model.Page{}, fmt.Errorf("decoding blocks of page %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(seo), &p.SEO); err != nil {
		return model.Page{}, fmt.Errorf("decoding seo of page %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return model.Page{}, fmt.Errorf("decoding settings of page %s: %w", p.ID, err)
	}

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Page{}, err
	}
	if p.LastModifiedAt, err = parseTime(updatedAt); err != nil {
		return model.Page{}, err
	}
	if p.PublishedAt, err = parseNullTime(publishedAt); err != nil {
		return model.Page{}, err
	}

	at, err := parseNullTime(scheduledAt)
	if err != nil {
		return model.Page{}, err
	}
	if at != nil {
		next, err := parseNullTime(nextRetry)
		if err != nil {
			return model.Page{}, err
		}
		p.Schedule = &model.Schedule{
			At:            *at,
			Attempts:      attempts,
			LastError:     lastError,
			Failed:        failed,
			NextAttemptAt: next,
		}
	}

	return p, nil
}

// pageRow holds the encoded column values of a page.
type pageRow struct {
	blocks, seo, settings               string
	publishedAt, scheduledAt, nextRetry sql.NullString
	attempts                            int
	lastError                           string
	failed                              bool
}

func encodePage(p model.Page) (pageRow, error) {
	blocks := p.Blocks
	if blocks == nil {
		blocks = []model.Block{}
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return pageRow{}, fmt.Errorf("encoding blocks: %w", err)
	}
	seo, err := json.Marshal(p.SEO)
	if err != nil {
		return pageRow{}, fmt.Errorf("encoding seo: %w", err)
	}
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return pageRow{}, fmt.Errorf("encoding settings: %w", err)
	}

	row := pageRow{
		blocks:      string(b),
		seo:         string(seo),
		settings:    string(settings),
		publishedAt: nullTime(p.PublishedAt),
	}
	if p.Schedule != nil {
		row.scheduledAt = nullTime(&p.Schedule.At)
		row.attempts = p.Schedule.Attempts
		row.lastError = p.Schedule.LastError
		row.failed = p.Schedule.Failed
		row.nextRetry = nullTime(p.Schedule.NextAttemptAt)
	}
	return row, nil
}

// CreatePage inserts a new page row.
func (q *Queries) CreatePage(ctx context.Context, p model.Page) error {
	row, err := encodePage(p)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx, `INSERT INTO pages (`+pageColumns+`, page_type, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.Title, p.Slug, row.blocks, p.Content, string(p.Status), p.AuthorID,
		p.LastModifiedBy, row.seo, row.settings, p.ETag, p.CurrentVersion, nullString(p.PublishedVersionID),
		row.publishedAt, row.scheduledAt, row.attempts, row.lastError, row.failed,
		row.nextRetry, formatTime(p.CreatedAt), formatTime(p.LastModifiedAt),
		p.Settings.PageType, nullString(p.Settings.ParentID),
	)
	if err != nil {
		return fmt.Errorf("inserting page %s: %w", p.ID, err)
	}
	return nil
}

// GetPage returns the page with id in tenantID.
func (q *Queries) GetPage(ctx context.Context, tenantID, id string) (model.Page, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE tenant_id = ? AND id = ?`, tenantID, id)

	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, &model.NotFoundError{Kind: "page", ID: id}
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("getting page %s: %w", id, err)
	}
	return p, nil
}

// UpdatePage replaces the stored page, provided the row still carries
// expectedETag and expectedVersion. It returns ErrStaleWrite otherwise.
func (q *Queries) UpdatePage(ctx context.Context, p model.Page, expectedETag string, expectedVersion int) error {
	row, err := encodePage(p)
	if err != nil {
		return err
	}

	res, err := q.db.ExecContext(ctx, `UPDATE pages SET
		title = ?, slug = ?, blocks = ?, content = ?, status = ?, last_modified_by = ?,
		seo = ?, settings = ?, page_type = ?, parent_id = ?, etag = ?, current_version = ?,
		published_version_id = ?, published_at = ?, scheduled_at = ?, schedule_attempts = ?,
		schedule_last_error = ?, schedule_failed = ?, schedule_next_attempt_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND etag = ? AND current_version = ?`,
		p.Title, p.Slug, row.blocks, p.Content, string(p.Status), p.LastModifiedBy,
		row.seo, row.settings, p.Settings.PageType, nullString(p.Settings.ParentID), p.ETag, p.CurrentVersion,
		nullString(p.PublishedVersionID), row.publishedAt, row.scheduledAt, row.attempts,
		row.lastError, row.failed, row.nextRetry, formatTime(p.LastModifiedAt),
		p.TenantID, p.ID, expectedETag, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating page %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

// DeletePage removes a page. Versions, the slug reservation, and publish log
// entries are removed by cascade.
func (q *Queries) DeletePage(ctx context.Context, tenantID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM pages WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting page %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return &model.NotFoundError{Kind: "page", ID: id}
	}
	return nil
}

// PageExists reports whether id exists in tenantID.
func (q *Queries) PageExists(ctx context.Context, tenantID, id string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM pages WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking page %s: %w", id, err)
	}
	return true, nil
}

// ListPagesParams filters and positions a keyset-paginated page listing.
type ListPagesParams struct {
	TenantID string
	Status   model.PageStatus
	PageType string
	ParentID string
	// AfterCreatedAt and AfterID position the listing strictly after a previous row.
	AfterCreatedAt *time.Time
	AfterID        string
	Limit          int
}

// ListPages returns pages of a tenant ordered by (created_at, id).
func (q *Queries) ListPages(ctx context.Context, arg ListPagesParams) ([]model.Page, error) {
	var (
		where = []string{"tenant_id = ?"}
		args  = []any{arg.TenantID}
	)
	if arg.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(arg.Status))
	}
	if arg.PageType != "" {
		where = append(where, "page_type = ?")
		args = append(args, arg.PageType)
	}
	if arg.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, arg.ParentID)
	}
	if arg.AfterCreatedAt != nil {
		after := formatTime(*arg.AfterCreatedAt)
		where = append(where, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, after, after, arg.AfterID)
	}
	args = append(args, arg.Limit)

	rows, err := q.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at, id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

// ListDueScheduledPages returns scheduled pages across all tenants whose
// publication time has passed and whose retry delay, if any, has elapsed.
func (q *Queries) ListDueScheduledPages(ctx context.Context, now time.Time, limit int) ([]model.Page, error) {
	ts := formatTime(now)
	rows, err := q.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages
		WHERE status = ? AND schedule_failed = 0
		  AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		  AND (schedule_next_attempt_at IS NULL OR schedule_next_attempt_at <= ?)
		ORDER BY scheduled_at, id
		LIMIT ?`, string(model.PageStatusScheduled), ts, ts, limit)
	if err != nil {
		return nil, fmt.Errorf("listing due pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating due pages: %w", err)
	}
	return pages, nil
}

// UpdateScheduleStateParams records the outcome of a failed scheduled publish.
type UpdateScheduleStateParams struct {
	TenantID      string
	ID            string
	ScheduledAt   time.Time
	Attempts      int
	LastError     string
	Failed        bool
	NextAttemptAt *time.Time
}

// UpdateScheduleState updates retry bookkeeping of a scheduled page. It does not
// touch content, etag, or version, and only applies while the page is still
// scheduled for the same time. It reports whether a row was updated.
func (q *Queries) UpdateScheduleState(ctx context.Context, arg UpdateScheduleStateParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE pages SET
		schedule_attempts = ?, schedule_last_error = ?, schedule_failed = ?, schedule_next_attempt_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ? AND scheduled_at = ?`,
		arg.Attempts, arg.LastError, arg.Failed, nullTime(arg.NextAttemptAt),
		arg.TenantID, arg.ID, string(model.PageStatusScheduled), formatTime(arg.ScheduledAt),
	)
	if err != nil {
		return false, fmt.Errorf("updating schedule of page %s: %w", arg.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}
