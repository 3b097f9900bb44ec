// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package slug keeps page slugs unique per tenant and resolves retired slugs
// through their redirect history.
package slug

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Registry reserves, renames, and resolves slugs.
type Registry struct {
	q *store.Queries
}

// New creates a Registry over q.
func New(q *store.Queries) *Registry {
	return &Registry{q: q}
}

// WithQueries returns a Registry bound to q, typically a transaction.
func (r *Registry) WithQueries(q *store.Queries) *Registry {
	return &Registry{q: q}
}

func validate(s string) error {
	if !IsValid(s) {
		return &model.ValidationError{
			Field:   "slug",
			Message: "must contain only lowercase letters, digits, and single hyphens",
		}
	}
	return nil
}

// Reserve claims slug for pageID in tenantID.
func (r *Registry) Reserve(ctx context.Context, tenantID, slug, pageID string, at time.Time) error {
	if err := validate(slug); err != nil {
		return err
	}
	return r.q.ReserveSlug(ctx, tenantID, slug, pageID, at)
}

// CheckAvailability reports whether slug is free in tenantID. A slug held by
// excludingPageID counts as free.
func (r *Registry) CheckAvailability(ctx context.Context, tenantID, slug, excludingPageID string) (bool, error) {
	if err := validate(slug); err != nil {
		return false, err
	}
	owner, err := r.q.SlugOwner(ctx, tenantID, slug)
	if err != nil {
		return false, err
	}
	return owner == "" || (excludingPageID != "" && owner == excludingPageID), nil
}

// RenameParams describes a slug change.
type RenameParams struct {
	TenantID  string
	PageID    string
	OldSlug   string
	NewSlug   string
	ChangedBy string
	ChangedAt time.Time
	// Redirect marks the old slug as a redirect source.
	Redirect bool
}

// Rename moves pageID from OldSlug to NewSlug and appends OldSlug to the page's
// slug history. Run it inside a transaction so a collision leaves the old
// reservation in place.
func (r *Registry) Rename(ctx context.Context, arg RenameParams) error {
	if arg.OldSlug == arg.NewSlug {
		return nil
	}
	if err := validate(arg.NewSlug); err != nil {
		return err
	}
	if err := r.q.ReleaseSlug(ctx, arg.TenantID, arg.PageID); err != nil {
		return err
	}
	if err := r.q.ReserveSlug(ctx, arg.TenantID, arg.NewSlug, arg.PageID, arg.ChangedAt); err != nil {
		return err
	}
	if arg.OldSlug == "" {
		return nil
	}
	return r.q.AppendSlugHistory(ctx, store.AppendSlugHistoryParams{
		TenantID:        arg.TenantID,
		PageID:          arg.PageID,
		Slug:            arg.OldSlug,
		ChangedAt:       arg.ChangedAt,
		ChangedBy:       arg.ChangedBy,
		RedirectEnabled: arg.Redirect,
	})
}

// Resolution is the result of resolving a slug.
type Resolution struct {
	PageID     string `json:"pageId"`
	Redirected bool   `json:"redirected"`
}

// Resolve maps slug to a page. Current slugs win; otherwise the most recent
// active redirect to a live page is used.
func (r *Registry) Resolve(ctx context.Context, tenantID, slug string) (Resolution, error) {
	owner, err := r.q.SlugOwner(ctx, tenantID, slug)
	if err != nil {
		return Resolution{}, err
	}
	if owner != "" {
		return Resolution{PageID: owner}, nil
	}

	target, err := r.q.FindRedirect(ctx, tenantID, slug)
	if err != nil {
		return Resolution{}, err
	}
	if target == "" {
		return Resolution{}, &model.NotFoundError{Kind: "slug", ID: slug}
	}
	return Resolution{PageID: target, Redirected: true}, nil
}

// Release drops the reservation held by pageID.
func (r *Registry) Release(ctx context.Context, tenantID, pageID string) error {
	return r.q.ReleaseSlug(ctx, tenantID, pageID)
}

// History returns the retired slugs of a page, oldest first.
func (r *Registry) History(ctx context.Context, tenantID, pageID string) ([]model.SlugHistoryEntry, error) {
	entries, err := r.q.ListSlugHistory(ctx, tenantID, pageID)
	if err != nil {
		return nil, fmt.Errorf("slug history: %w", err)
	}
	return entries, nil
}

// Deactivate stops every history entry of a page from resolving.
func (r *Registry) Deactivate(ctx context.Context, tenantID, pageID string) error {
	return r.q.DeactivateSlugHistory(ctx, tenantID, pageID)
}
