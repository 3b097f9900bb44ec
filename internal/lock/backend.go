// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lock

import (
	"context"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Backend stores edit locks. Implementations must make TryAcquire and Refresh
// atomic per page, and must treat a lock whose ExpiresAt is not after now as absent.
type Backend interface {
	// TryAcquire grants want unless a live lock is held by someone else, in
	// which case it returns *model.LockDeniedError. Re-acquiring a lock the
	// caller already holds keeps AcquiredAt and extends ExpiresAt.
	TryAcquire(ctx context.Context, want model.Lock, now time.Time) (model.Lock, error)

	// Get returns the live lock on a page, or nil.
	Get(ctx context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error)

	// Refresh moves ExpiresAt of a live lock held by ownerID.
	Refresh(ctx context.Context, tenantID, pageID, ownerID string, expiresAt, now time.Time) (model.Lock, error)

	// Release drops the lock if ownerID holds it. Releasing a lock that is
	// absent or held by someone else is not an error.
	Release(ctx context.Context, tenantID, pageID, ownerID string) error

	// Break removes the lock regardless of owner and returns what was removed.
	Break(ctx context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error)

	Close() error
}

// sameHolder reports whether want may take over or extend held.
func sameHolder(held, want model.Lock) bool {
	return held.HeldBySession(want.OwnerID, want.SessionID)
}

func denied(l model.Lock) error {
	return &model.LockDeniedError{Owner: l.OwnerID, ExpiresAt: l.ExpiresAt}
}

func notHeld(pageID string) error {
	return &model.NotFoundError{Kind: "lock", ID: pageID}
}
