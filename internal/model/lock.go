// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Lock is an exclusive, expiring edit lock on a page.
type Lock struct {
	TenantID   string        `json:"tenantId"`
	PageID     string        `json:"pageId"`
	OwnerID    string        `json:"ownerId"`
	SessionID  string        `json:"sessionId"`
	AcquiredAt time.Time     `json:"acquiredAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the lock is no longer in force at now.
func (l Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// HeldBy reports whether ownerID holds the lock.
func (l Lock) HeldBy(ownerID string) bool {
	return l.OwnerID == ownerID
}

// HeldBySession reports whether ownerID holds the lock from sessionID. An
// empty session on either side matches any session of the owner.
func (l Lock) HeldBySession(ownerID, sessionID string) bool {
	if l.OwnerID != ownerID {
		return false
	}
	return l.SessionID == "" || sessionID == "" || l.SessionID == sessionID
}
