// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Publish modes
const (
	PublishNow       = "now"
	PublishScheduled = "scheduled"
)

// PublishRequest asks for immediate or deferred publication.
type PublishRequest struct {
	Mode string     `json:"mode"`
	At   *time.Time `json:"scheduledAt,omitempty"`
	// ETag is optional; when given it must match.
	ETag string `json:"etag,omitempty"`
}

// Publish makes a page live now, or schedules it for req.At. Publishing an
// already published page changes nothing; scheduling a scheduled page moves
// its publication time.
func (s *Service) Publish(ctx context.Context, actor Actor, pageID string, req PublishRequest) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Publish", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}

	switch req.Mode {
	case "", PublishNow:
		return s.mutate(ctx, actor, pageID, mutation{
			op:      "published",
			event:   fixed(EventPublish),
			etag:    req.ETag,
			publish: true,
			summary: "published",
			apply:   s.publishApply,
		})

	case PublishScheduled:
		if req.At == nil || req.At.IsZero() {
			return model.Page{}, &model.ValidationError{Field: "scheduledAt", Message: "is required for scheduled publishing"}
		}
		at := req.At.UTC()
		if !at.After(s.now()) {
			return model.Page{}, &model.ValidationError{Field: "scheduledAt", Message: "must be in the future"}
		}
		return s.mutate(ctx, actor, pageID, mutation{
			op:      "scheduled",
			event:   fixed(EventSchedule),
			etag:    req.ETag,
			summary: "scheduled for " + at.Format(time.RFC3339),
			apply: func(_ context.Context, _ *store.Queries, _ model.Page, next *model.Page) error {
				next.Schedule = &model.Schedule{At: at}
				return nil
			},
		})
	}
	return model.Page{}, &model.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown publish mode %q", req.Mode)}
}

// publishApply keeps an already published page pointing at its head version.
// Edits made after the last publish are promoted without recording a new
// version.
func (s *Service) publishApply(ctx context.Context, q *store.Queries, cur model.Page, next *model.Page) error {
	next.Schedule = nil
	if !cur.IsPublished() {
		return nil
	}
	next.PublishedAt = cur.PublishedAt
	head, err := q.GetVersion(ctx, cur.TenantID, cur.ID, cur.CurrentVersion)
	if err != nil {
		return fmt.Errorf("loading head version of page %s: %w", cur.ID, err)
	}
	if head.ID != cur.PublishedVersionID {
		now := s.now().UTC()
		next.PublishedAt = &now
		next.PublishedVersionID = head.ID
	}
	return nil
}

func clearPublication(_ context.Context, _ *store.Queries, _ model.Page, next *model.Page) error {
	next.Schedule = nil
	next.PublishedAt = nil
	next.PublishedVersionID = ""
	return nil
}

// Unpublish returns a published page to draft.
func (s *Service) Unpublish(ctx context.Context, actor Actor, pageID, suppliedETag string) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Unpublish", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	return s.mutate(ctx, actor, pageID, mutation{
		op:      "unpublished",
		event:   fixed(EventUnpublish),
		etag:    suppliedETag,
		summary: "unpublished",
		apply:   clearPublication,
	})
}

// Unschedule cancels a pending scheduled publication and returns the page to draft.
func (s *Service) Unschedule(ctx context.Context, actor Actor, pageID, suppliedETag string) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Unschedule", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	return s.mutate(ctx, actor, pageID, mutation{
		op:      "unscheduled",
		event:   fixed(EventUnschedule),
		etag:    suppliedETag,
		summary: "schedule cancelled",
		apply: func(_ context.Context, _ *store.Queries, _ model.Page, next *model.Page) error {
			next.Schedule = nil
			return nil
		},
	})
}

// Archive takes a page out of circulation and releases its slug. Archived
// pages can only be restored.
func (s *Service) Archive(ctx context.Context, actor Actor, pageID, suppliedETag string) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Archive", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	return s.mutate(ctx, actor, pageID, mutation{
		op:      "archived",
		event:   fixed(EventArchive),
		etag:    suppliedETag,
		summary: "archived",
		apply:   clearPublication,
	})
}

// Restore copies the content of version n into a new head version. Past
// versions are left untouched. An archived page comes back as a draft and
// must be able to reclaim the restored slug.
func (s *Service) Restore(ctx context.Context, actor Actor, pageID string, n int, suppliedETag string) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Restore", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	if n < 1 {
		return model.Page{}, &model.ValidationError{Field: "version", Message: "must be a positive version number"}
	}

	return s.mutate(ctx, actor, pageID, mutation{
		op: "restored",
		event: func(cur model.PageStatus) Event {
			if cur == model.PageStatusArchived {
				return EventUnarchive
			}
			return EventEdit
		},
		etag:     suppliedETag,
		force:    true,
		redirect: true,
		summary:  fmt.Sprintf("restored from version %d", n),
		apply: func(ctx context.Context, q *store.Queries, cur model.Page, next *model.Page) error {
			snap, err := s.history.WithQueries(q).Restore(ctx, cur.TenantID, cur.ID, n)
			if err != nil {
				return err
			}
			if err := checkParent(ctx, q, cur.TenantID, cur.ID, snap.Settings.ParentID); err != nil {
				return err
			}
			next.Title = snap.Title
			next.Slug = snap.Slug
			next.Blocks = snap.Blocks
			next.Content = snap.Content
			next.SEO = snap.SEO
			next.Settings = snap.Settings
			return nil
		},
	})
}
