// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lock provides exclusive, expiring edit locks on pages.
//
// Locks are advisory: they gate mutations through the lifecycle service but
// are not persisted with the page. Losing the backend means no lock is held.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Default lock durations.
const (
	DefaultTTL    = 5 * time.Minute
	DefaultMaxTTL = 30 * time.Minute
)

// Manager applies lock policy (TTL bounds, ownership, admin override) on top
// of a Backend.
type Manager struct {
	backend Backend
	ttl     time.Duration
	maxTTL  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager. Non-positive durations fall back to the defaults.
func NewManager(backend Backend, ttl, maxTTL time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		backend: backend,
		ttl:     ttl,
		maxTTL:  maxTTL,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return m.ttl
	}
	if ttl > m.maxTTL {
		return m.maxTTL
	}
	return ttl
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return &model.ValidationError{Field: "ownerId", Message: "is required"}
	}
	return nil
}

// Acquire takes the edit lock for ownerID, or extends it if ownerID already
// holds it from the same session. A zero ttl uses the default.
func (m *Manager) Acquire(ctx context.Context, tenantID, pageID, ownerID, sessionID string, ttl time.Duration) (model.Lock, error) {
	if err := requireOwner(ownerID); err != nil {
		return model.Lock{}, err
	}
	ttl = m.clampTTL(ttl)
	now := m.now().UTC()

	l, err := m.backend.TryAcquire(ctx, model.Lock{
		TenantID:   tenantID,
		PageID:     pageID,
		OwnerID:    ownerID,
		SessionID:  sessionID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		TTL:        ttl,
	}, now)
	if err != nil {
		return model.Lock{}, err
	}
	m.logger.Debug("lock acquired", "tenant_id", tenantID, "page_id", pageID, "owner", ownerID,
		"expires_at", l.ExpiresAt)
	return l, nil
}

// Heartbeat extends a held lock by its original TTL.
func (m *Manager) Heartbeat(ctx context.Context, tenantID, pageID, ownerID string) (model.Lock, error) {
	if err := requireOwner(ownerID); err != nil {
		return model.Lock{}, err
	}
	now := m.now().UTC()

	cur, err := m.backend.Get(ctx, tenantID, pageID, now)
	if err != nil {
		return model.Lock{}, err
	}
	if cur == nil {
		return model.Lock{}, notHeld(pageID)
	}
	if !cur.HeldBy(ownerID) {
		return model.Lock{}, denied(*cur)
	}
	return m.backend.Refresh(ctx, tenantID, pageID, ownerID, now.Add(m.clampTTL(cur.TTL)), now)
}

// Release drops ownerID's lock. It is a no-op when ownerID holds no lock.
func (m *Manager) Release(ctx context.Context, tenantID, pageID, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	return m.backend.Release(ctx, tenantID, pageID, ownerID)
}

// ForceBreak removes any lock on the page. Only administrators may break
// another user's lock.
func (m *Manager) ForceBreak(ctx context.Context, tenantID, pageID string, byAdmin bool) (*model.Lock, error) {
	if !byAdmin {
		return nil, fmt.Errorf("breaking lock on page %s: %w", pageID, model.ErrForbidden)
	}
	return m.backend.Break(ctx, tenantID, pageID, m.now().UTC())
}

// Check returns *model.LockDeniedError when a live lock on the page is held
// by someone other than callerID, or by callerID from another session.
func (m *Manager) Check(ctx context.Context, tenantID, pageID, callerID, sessionID string) error {
	cur, err := m.backend.Get(ctx, tenantID, pageID, m.now().UTC())
	if err != nil {
		return err
	}
	if cur != nil && !cur.HeldBySession(callerID, sessionID) {
		return denied(*cur)
	}
	return nil
}

// Current returns the live lock on the page, or nil.
func (m *Manager) Current(ctx context.Context, tenantID, pageID string) (*model.Lock, error) {
	return m.backend.Get(ctx, tenantID, pageID, m.now().UTC())
}

// Close releases backend resources.
func (m *Manager) Close() error {
	return m.backend.Close()
}
