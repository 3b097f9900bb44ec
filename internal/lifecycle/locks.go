// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

func (s *Service) requirePage(ctx context.Context, tenantID, pageID string) error {
	ok, err := s.store.Queries().PageExists(ctx, tenantID, pageID)
	if err != nil {
		return err
	}
	if !ok {
		return &model.NotFoundError{Kind: "page", ID: pageID}
	}
	return nil
}

// AcquireLock takes the edit lock of a page for the actor. A non-positive ttl
// uses the configured default.
func (s *Service) AcquireLock(ctx context.Context, actor Actor, pageID string, ttl time.Duration) (_ model.Lock, err error) {
	ctx, span := s.startSpan(ctx, "AcquireLock", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Lock{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Lock{}, err
	}
	if err := s.requirePage(ctx, actor.TenantID, pageID); err != nil {
		return model.Lock{}, err
	}
	return s.locks.Acquire(ctx, actor.TenantID, pageID, actor.CallerID, actor.SessionID, ttl)
}

// HeartbeatLock extends the actor's edit lock.
func (s *Service) HeartbeatLock(ctx context.Context, actor Actor, pageID string) (_ model.Lock, err error) {
	ctx, span := s.startSpan(ctx, "HeartbeatLock", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Lock{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Lock{}, err
	}
	return s.locks.Heartbeat(ctx, actor.TenantID, pageID, actor.CallerID)
}

// ReleaseLock gives up the actor's edit lock. Releasing a lock that is not
// held succeeds.
func (s *Service) ReleaseLock(ctx context.Context, actor Actor, pageID string) (err error) {
	ctx, span := s.startSpan(ctx, "ReleaseLock", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return err
	}
	if err := ValidatePageID(pageID); err != nil {
		return err
	}
	return s.locks.Release(ctx, actor.TenantID, pageID, actor.CallerID)
}

// ForceBreakLock removes whatever lock is held on a page. Only admins may do
// this. The broken lock, if any, is returned and recorded in the event log.
func (s *Service) ForceBreakLock(ctx context.Context, actor Actor, pageID string) (_ *model.Lock, err error) {
	ctx, span := s.startSpan(ctx, "ForceBreakLock", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return nil, err
	}
	broken, err := s.locks.ForceBreak(ctx, actor.TenantID, pageID, actor.Admin)
	if err != nil {
		return nil, err
	}
	if broken == nil {
		return nil, nil
	}

	s.logger.Warn("edit lock broken", "tenant_id", actor.TenantID, "page_id", pageID,
		"owner", broken.OwnerID, "by", actor.CallerID)
	if lerr := s.events.LogWarning(ctx, model.EventCategoryLock, "Edit lock broken", subject(actor, pageID), map[string]any{
		"previousOwner": broken.OwnerID,
		"expiresAt":     broken.ExpiresAt.Format(time.RFC3339),
	}); lerr != nil {
		s.logger.Error("recording lock break failed", "page_id", pageID, "error", lerr)
	}
	return broken, nil
}
