// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter narrows a page listing.
type ListFilter struct {
	Status   model.PageStatus
	PageType string
	ParentID string
	Cursor   string
	Limit    int
}

// ListResult is one page of a listing. NextCursor is empty on the last page.
type ListResult struct {
	Pages      []model.PageSummary `json:"pages"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

func encodeCursor(p model.Page) string {
	raw := p.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + p.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (time.Time, string, error) {
	invalid := &model.ValidationError{Field: "cursor", Message: "is invalid"}
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return time.Time{}, "", invalid
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", invalid
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", invalid
	}
	return at, id, nil
}

// List returns the actor's pages in creation order.
func (s *Service) List(ctx context.Context, actor Actor, f ListFilter) (_ ListResult, err error) {
	ctx, span := s.startSpan(ctx, "List", actor, "")
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return ListResult{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return ListResult{}, &model.ValidationError{Field: "status", Message: "is not a page status"}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	arg := store.ListPagesParams{
		TenantID: actor.TenantID,
		Status:   f.Status,
		PageType: f.PageType,
		ParentID: f.ParentID,
		Limit:    limit + 1,
	}
	if f.Cursor != "" {
		at, id, err := decodeCursor(f.Cursor)
		if err != nil {
			return ListResult{}, err
		}
		arg.AfterCreatedAt = &at
		arg.AfterID = id
	}

	pages, err := s.store.Queries().ListPages(ctx, arg)
	if err != nil {
		return ListResult{}, err
	}

	res := ListResult{Pages: make([]model.PageSummary, 0, min(len(pages), limit))}
	if len(pages) > limit {
		pages = pages[:limit]
		res.NextCursor = encodeCursor(pages[limit-1])
	}
	for i := range pages {
		res.Pages = append(res.Pages, pages[i].Summary())
	}
	return res, nil
}

// CheckSlug reports whether slug is free in the actor's tenant. The page
// excludeID, when set, does not count as a holder.
func (s *Service) CheckSlug(ctx context.Context, actor Actor, slugValue, excludeID string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "CheckSlug", actor, excludeID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return false, err
	}
	if err := validateSlug(slugValue); err != nil {
		return false, err
	}
	return s.slugs.CheckAvailability(ctx, actor.TenantID, slugValue, excludeID)
}

// SlugResolution tells which page a slug leads to.
type SlugResolution struct {
	PageID      string `json:"pageId"`
	Redirected  bool   `json:"redirected"`
	CurrentSlug string `json:"currentSlug"`
}

// ResolveSlug maps a current or retired slug to its page.
func (s *Service) ResolveSlug(ctx context.Context, actor Actor, slugValue string) (_ SlugResolution, err error) {
	ctx, span := s.startSpan(ctx, "ResolveSlug", actor, "")
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return SlugResolution{}, err
	}
	if err := validateSlug(slugValue); err != nil {
		return SlugResolution{}, err
	}
	res, err := s.slugs.Resolve(ctx, actor.TenantID, slugValue)
	if err != nil {
		return SlugResolution{}, err
	}
	p, err := s.store.Queries().GetPage(ctx, actor.TenantID, res.PageID)
	if err != nil {
		return SlugResolution{}, err
	}
	return SlugResolution{PageID: p.ID, Redirected: res.Redirected, CurrentSlug: p.Slug}, nil
}

// ListVersions returns the versions of a page, newest first.
func (s *Service) ListVersions(ctx context.Context, actor Actor, pageID string) (_ []model.Version, err error) {
	ctx, span := s.startSpan(ctx, "ListVersions", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return nil, err
	}
	if err := s.requirePage(ctx, actor.TenantID, pageID); err != nil {
		return nil, err
	}
	return s.history.List(ctx, actor.TenantID, pageID)
}

// GetVersion returns version n of a page.
func (s *Service) GetVersion(ctx context.Context, actor Actor, pageID string, n int) (_ model.Version, err error) {
	ctx, span := s.startSpan(ctx, "GetVersion", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Version{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Version{}, err
	}
	if n < 1 {
		return model.Version{}, &model.ValidationError{Field: "version", Message: "must be a positive version number"}
	}
	if err := s.requirePage(ctx, actor.TenantID, pageID); err != nil {
		return model.Version{}, err
	}
	return s.history.Get(ctx, actor.TenantID, pageID, n)
}

// Events returns the audit trail of the actor's tenant, optionally narrowed
// to one page and category.
func (s *Service) Events(ctx context.Context, actor Actor, pageID, category string, limit int) (_ []model.Event, err error) {
	ctx, span := s.startSpan(ctx, "Events", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if pageID != "" {
		if err := ValidatePageID(pageID); err != nil {
			return nil, err
		}
	}
	return s.events.List(ctx, actor.TenantID, pageID, category, limit)
}
