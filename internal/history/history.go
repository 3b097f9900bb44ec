// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package history records immutable page versions and serves them for
// listing and restore.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Manager creates and reads page versions.
type Manager struct {
	q *store.Queries
	// retention is how many of the newest versions survive pruning; 0 disables pruning.
	retention int
}

// New creates a Manager over q. retention of 0 keeps every version.
func New(q *store.Queries, retention int) *Manager {
	if retention < 0 {
		retention = 0
	}
	return &Manager{q: q, retention: retention}
}

// WithQueries returns a Manager bound to q, typically a transaction.
func (m *Manager) WithQueries(q *store.Queries) *Manager {
	return &Manager{q: q, retention: m.retention}
}

// SnapshotParams describes the version to record.
type SnapshotParams struct {
	// Page is the page in its new state; its CurrentVersion is the number recorded.
	Page      model.Page
	Author    string
	Changes   string
	AutoSave  bool
	CreatedAt time.Time
}

// Snapshot stores the content of arg.Page as version arg.Page.CurrentVersion.
func (m *Manager) Snapshot(ctx context.Context, arg SnapshotParams) (model.Version, error) {
	v := model.Version{
		ID:            uuid.NewString(),
		PageID:        arg.Page.ID,
		VersionNumber: arg.Page.CurrentVersion,
		Payload:       arg.Page.Snapshot(),
		CreatedAt:     arg.CreatedAt,
		CreatedBy:     arg.Author,
		Changes:       arg.Changes,
		AutoSave:      arg.AutoSave,
	}
	if err := m.q.CreateVersion(ctx, arg.Page.TenantID, v); err != nil {
		return model.Version{}, err
	}
	return v, nil
}

// Get returns version n of a page.
func (m *Manager) Get(ctx context.Context, tenantID, pageID string, n int) (model.Version, error) {
	return m.q.GetVersion(ctx, tenantID, pageID, n)
}

// List returns every version of a page, newest first.
func (m *Manager) List(ctx context.Context, tenantID, pageID string) ([]model.Version, error) {
	return m.q.ListVersions(ctx, tenantID, pageID)
}

// Restore returns the content of version n. The caller applies it as a new
// head version; stored versions are never rewritten.
func (m *Manager) Restore(ctx context.Context, tenantID, pageID string, n int) (model.Snapshot, error) {
	v, err := m.q.GetVersion(ctx, tenantID, pageID, n)
	if err != nil {
		return model.Snapshot{}, err
	}
	return v.Payload, nil
}

// Prune removes old autosave versions beyond the retention window. The
// version referenced by protectID is always kept.
func (m *Manager) Prune(ctx context.Context, tenantID, pageID, protectID string) (int64, error) {
	if m.retention == 0 {
		return 0, nil
	}
	n, err := m.q.PruneAutoSaveVersions(ctx, store.PruneAutoSaveVersionsParams{
		TenantID:  tenantID,
		PageID:    pageID,
		Keep:      m.retention,
		ProtectID: protectID,
	})
	if err != nil {
		return 0, fmt.Errorf("pruning versions: %w", err)
	}
	return n, nil
}
