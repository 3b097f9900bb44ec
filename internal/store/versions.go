// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/olegiv/ocms-pages/internal/model"
)

// ErrVersionExists is returned when a version number is already taken for a page.
var ErrVersionExists = errors.New("version number already exists")

const versionColumns = `id, page_id, version_number, payload, changes, auto_save, created_by, created_at`

func scanVersion(row rowScanner) (model.Version, error) {
	var (
		v                  model.Version
		payload, createdAt string
	)
	if err := row.Scan(&v.ID, &v.PageID, &v.VersionNumber, &payload, &v.Changes,
		&v.AutoSave, &v.CreatedBy, &createdAt); err != nil {
		return model.Version{}, err
	}
	if err := json.Unmarshal([]byte(payload), &v.Payload); err != nil {
		return model.Version{}, fmt.Errorf("decoding version %s: %w", v.ID, err)
	}
	var err error
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Version{}, err
	}
	return v, nil
}

// CreateVersion stores an immutable version row.
func (q *Queries) CreateVersion(ctx context.Context, tenantID string, v model.Version) error {
	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return fmt.Errorf("encoding version payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `INSERT INTO page_versions
		(id, page_id, tenant_id, version_number, payload, changes, auto_save, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PageID, tenantID, v.VersionNumber, string(payload), v.Changes, v.AutoSave,
		v.CreatedBy, formatTime(v.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("page %s version %d: %w", v.PageID, v.VersionNumber, ErrVersionExists)
	}
	if err != nil {
		return fmt.Errorf("inserting version %d of page %s: %w", v.VersionNumber, v.PageID, err)
	}
	return nil
}

// GetVersion returns version n of a page.
func (q *Queries) GetVersion(ctx context.Context, tenantID, pageID string, n int) (model.Version, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM page_versions
		WHERE tenant_id = ? AND page_id = ? AND version_number = ?`, tenantID, pageID, n)

	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Version{}, &model.NotFoundError{Kind: "version", ID: pageID + "@" + strconv.Itoa(n)}
	}
	if err != nil {
		return model.Version{}, fmt.Errorf("getting version %d of page %s: %w", n, pageID, err)
	}
	return v, nil
}

// ListVersions returns all versions of a page, newest first.
func (q *Queries) ListVersions(ctx context.Context, tenantID, pageID string) ([]model.Version, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+versionColumns+` FROM page_versions
		WHERE tenant_id = ? AND page_id = ?
		ORDER BY version_number DESC`, tenantID, pageID)
	if err != nil {
		return nil, fmt.Errorf("listing versions of page %s: %w", pageID, err)
	}
	defer func() { _ = rows.Close() }()

	versions := []model.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}

// PruneAutoSaveVersionsParams selects autosave versions to delete.
type PruneAutoSaveVersionsParams struct {
	TenantID string
	PageID   string
	// Keep is how many of the newest versions are always retained.
	Keep int
	// ProtectID is a version that must never be deleted (the published one).
	ProtectID string
}

// PruneAutoSaveVersions deletes autosave versions older than the newest Keep
// versions and returns how many were removed.
func (q *Queries) PruneAutoSaveVersions(ctx context.Context, arg PruneAutoSaveVersionsParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM page_versions
		WHERE tenant_id = ? AND page_id = ? AND auto_save = 1 AND id != ?
		  AND version_number <= (
		    SELECT MAX(version_number) FROM page_versions WHERE tenant_id = ? AND page_id = ?
		  ) - ?`,
		arg.TenantID, arg.PageID, arg.ProtectID, arg.TenantID, arg.PageID, arg.Keep)
	if err != nil {
		return 0, fmt.Errorf("pruning versions of page %s: %w", arg.PageID, err)
	}
	return res.RowsAffected()
}
