// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

type key struct {
	tenantID string
	pageID   string
}

// MemoryBackend keeps locks in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	locks map[key]model.Lock
}

// NewMemoryBackend creates an empty in-memory lock backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{locks: make(map[key]model.Lock)}
}

// live returns the unexpired lock for k, dropping an expired one. Callers hold mu.
func (b *MemoryBackend) live(k key, now time.Time) (model.Lock, bool) {
	l, ok := b.locks[k]
	if !ok {
		return model.Lock{}, false
	}
	if l.Expired(now) {
		delete(b.locks, k)
		return model.Lock{}, false
	}
	return l, true
}

// TryAcquire implements Backend.
func (b *MemoryBackend) TryAcquire(_ context.Context, want model.Lock, now time.Time) (model.Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{want.TenantID, want.PageID}
	if held, ok := b.live(k, now); ok {
		if !sameHolder(held, want) {
			return model.Lock{}, denied(held)
		}
		want.AcquiredAt = held.AcquiredAt
		if want.SessionID == "" {
			want.SessionID = held.SessionID
		}
	}
	b.locks[k] = want
	return want, nil
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.live(key{tenantID, pageID}, now)
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Refresh implements Backend.
func (b *MemoryBackend) Refresh(_ context.Context, tenantID, pageID, ownerID string, expiresAt, now time.Time) (model.Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{tenantID, pageID}
	l, ok := b.live(k, now)
	if !ok {
		return model.Lock{}, notHeld(pageID)
	}
	if !l.HeldBy(ownerID) {
		return model.Lock{}, denied(l)
	}
	l.ExpiresAt = expiresAt
	b.locks[k] = l
	return l, nil
}

// Release implements Backend.
func (b *MemoryBackend) Release(_ context.Context, tenantID, pageID, ownerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{tenantID, pageID}
	if l, ok := b.locks[k]; ok && l.HeldBy(ownerID) {
		delete(b.locks, k)
	}
	return nil
}

// Break implements Backend.
func (b *MemoryBackend) Break(_ context.Context, tenantID, pageID string, now time.Time) (*model.Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{tenantID, pageID}
	l, ok := b.live(k, now)
	delete(b.locks, k)
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	return nil
}
