// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pages/internal/etag"
	"github.com/olegiv/ocms-pages/internal/history"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/slug"
	"github.com/olegiv/ocms-pages/internal/store"
)

// MaxTitleLength is the maximum length of a page title in characters.
const MaxTitleLength = 300

// CreateInput is the seed data of a new page.
type CreateInput struct {
	Title    string         `json:"title"`
	Slug     string         `json:"slug"`
	Blocks   []model.Block  `json:"blocks"`
	Content  string         `json:"content"`
	SEO      model.SEO      `json:"seo"`
	Settings model.Settings `json:"settings"`
}

// Changes holds the fields to update. Nil fields are left as they are.
type Changes struct {
	Title    *string         `json:"title,omitempty"`
	Slug     *string         `json:"slug,omitempty"`
	Blocks   *[]model.Block  `json:"blocks,omitempty"`
	Content  *string         `json:"content,omitempty"`
	SEO      *model.SEO      `json:"seo,omitempty"`
	Settings *model.Settings `json:"settings,omitempty"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Slug == nil && c.Blocks == nil && c.Content == nil &&
		c.SEO == nil && c.Settings == nil
}

// UpdateOptions tunes how an update is recorded.
type UpdateOptions struct {
	AutoSave      bool   `json:"autoSave"`
	ChangeSummary string `json:"changeSummary"`
	// CreateRedirect keeps the old slug resolving after a rename. Defaults to true.
	CreateRedirect *bool `json:"createRedirect,omitempty"`
}

func (o UpdateOptions) redirect() bool {
	return o.CreateRedirect == nil || *o.CreateRedirect
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &model.ValidationError{Field: "title", Message: "is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", &model.ValidationError{Field: "title", Message: "is too long"}
	}
	return title, nil
}

func validateSlug(s string) error {
	if !slug.IsValid(s) {
		return &model.ValidationError{Field: "slug", Message: "must contain only lowercase letters, digits, and single hyphens"}
	}
	return nil
}

func validateSettings(st model.Settings) (model.Settings, error) {
	st = st.WithDefaults()
	switch st.PageType {
	case model.PageTypeDefault, model.PageTypeLanding, model.PageTypeBlog, model.PageTypeSystem:
	default:
		return st, &model.ValidationError{Field: "settings.pageType", Message: "unknown page type " + st.PageType}
	}
	switch st.Visibility {
	case model.VisibilityPublic, model.VisibilityPrivate, model.VisibilityAuthOnly:
	default:
		return st, &model.ValidationError{Field: "settings.visibility", Message: "unknown visibility " + st.Visibility}
	}
	if st.Order < 0 {
		return st, &model.ValidationError{Field: "settings.order", Message: "must not be negative"}
	}
	return st, nil
}

// checkParent verifies that the parent page exists in the tenant and is not the page itself.
func checkParent(ctx context.Context, q *store.Queries, tenantID, pageID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == pageID {
		return &model.ValidationError{Field: "settings.parentId", Message: "page cannot be its own parent"}
	}
	ok, err := q.PageExists(ctx, tenantID, parentID)
	if err != nil {
		return err
	}
	if !ok {
		return &model.ValidationError{Field: "settings.parentId", Message: "parent page does not exist"}
	}
	return nil
}

// Create validates input, reserves the slug, and stores the page with its
// first version in one transaction.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Create", actor, "")
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return model.Page{}, err
	}
	pageSlug := strings.TrimSpace(in.Slug)
	if pageSlug == "" {
		pageSlug = slug.Slugify(title)
	}
	if err := validateSlug(pageSlug); err != nil {
		return model.Page{}, err
	}
	settings, err := validateSettings(in.Settings)
	if err != nil {
		return model.Page{}, err
	}
	blocks, err := s.blocks.Normalize(in.Blocks)
	if err != nil {
		return model.Page{}, err
	}

	now := s.now().UTC()
	p := model.Page{
		ID:             uuid.NewString(),
		TenantID:       actor.TenantID,
		Title:          title,
		Slug:           pageSlug,
		Blocks:         blocks,
		Content:        in.Content,
		Status:         model.PageStatusDraft,
		AuthorID:       actor.CallerID,
		LastModifiedBy: actor.CallerID,
		CreatedAt:      now,
		LastModifiedAt: now,
		SEO:            in.SEO,
		Settings:       settings,
		CurrentVersion: 1,
	}
	if p.ETag, err = s.guard.Compute(p); err != nil {
		return model.Page{}, err
	}

	err = s.store.InTx(ctx, func(q *store.Queries) error {
		if err := checkParent(ctx, q, p.TenantID, p.ID, p.Settings.ParentID); err != nil {
			return err
		}
		if err := s.slugs.WithQueries(q).Reserve(ctx, p.TenantID, p.Slug, p.ID, now); err != nil {
			return err
		}
		if err := q.CreatePage(ctx, p); err != nil {
			return err
		}
		if _, err := s.history.WithQueries(q).Snapshot(ctx, history.SnapshotParams{
			Page:      p,
			Author:    actor.CallerID,
			Changes:   "created",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.events.WithQueries(q).LogPageEvent(ctx, "Page created", subject(actor, p.ID),
			map[string]any{"slug": p.Slug, "title": p.Title})
	})
	if err != nil {
		return model.Page{}, err
	}

	p.SlugHistory = []model.SlugHistoryEntry{}
	s.logger.Info("page created", "tenant_id", p.TenantID, "page_id", p.ID, "slug", p.Slug)
	return p, nil
}

// Get returns a page with its lock state and slug history.
func (s *Service) Get(ctx context.Context, actor Actor, pageID string) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Get", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	p, err := s.store.Queries().GetPage(ctx, actor.TenantID, pageID)
	if err != nil {
		return model.Page{}, err
	}
	if err := s.overlay(ctx, &p); err != nil {
		return model.Page{}, err
	}
	return p, nil
}

// Update applies changes to a page. suppliedETag must match the stored ETag.
func (s *Service) Update(ctx context.Context, actor Actor, pageID, suppliedETag string, ch Changes, opts UpdateOptions) (_ model.Page, err error) {
	ctx, span := s.startSpan(ctx, "Update", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return model.Page{}, err
	}
	if err := ValidatePageID(pageID); err != nil {
		return model.Page{}, err
	}
	if etag.Normalize(suppliedETag) == "" {
		return model.Page{}, &model.ValidationError{Field: "etag", Message: "is required"}
	}
	if ch.Empty() {
		return model.Page{}, &model.ValidationError{Field: "data", Message: "no changes supplied"}
	}

	var (
		title    string
		settings model.Settings
		blocks   []model.Block
	)
	if ch.Title != nil {
		if title, err = validateTitle(*ch.Title); err != nil {
			return model.Page{}, err
		}
	}
	if ch.Slug != nil {
		if err := validateSlug(*ch.Slug); err != nil {
			return model.Page{}, err
		}
	}
	if ch.Settings != nil {
		if settings, err = validateSettings(*ch.Settings); err != nil {
			return model.Page{}, err
		}
	}
	if ch.Blocks != nil {
		if blocks, err = s.blocks.Normalize(*ch.Blocks); err != nil {
			return model.Page{}, err
		}
	}

	return s.mutate(ctx, actor, pageID, mutation{
		op:       "updated",
		event:    fixed(EventEdit),
		etag:     suppliedETag,
		autoSave: opts.AutoSave,
		summary:  strings.TrimSpace(opts.ChangeSummary),
		redirect: opts.redirect(),
		apply: func(ctx context.Context, q *store.Queries, cur model.Page, next *model.Page) error {
			if ch.Title != nil {
				next.Title = title
			}
			if ch.Slug != nil {
				next.Slug = *ch.Slug
			}
			if ch.Blocks != nil {
				next.Blocks = blocks
			}
			if ch.Content != nil {
				next.Content = *ch.Content
			}
			if ch.SEO != nil {
				next.SEO = *ch.SEO
			}
			if ch.Settings != nil {
				if settings.ParentID != cur.Settings.ParentID {
					if err := checkParent(ctx, q, cur.TenantID, cur.ID, settings.ParentID); err != nil {
						return err
					}
				}
				next.Settings = settings
			}
			return nil
		},
	})
}

// Delete removes a page with its versions and slug reservation. Its slug
// history stops resolving.
func (s *Service) Delete(ctx context.Context, actor Actor, pageID string) (err error) {
	ctx, span := s.startSpan(ctx, "Delete", actor, pageID)
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return err
	}
	if err := ValidatePageID(pageID); err != nil {
		return err
	}
	return s.delete(ctx, actor, pageID)
}

func (s *Service) delete(ctx context.Context, actor Actor, pageID string) error {
	if err := s.checkLock(ctx, actor, pageID); err != nil && !errors.Is(err, ErrLockRequired) {
		return err
	}

	err := s.store.InTx(ctx, func(q *store.Queries) error {
		p, err := q.GetPage(ctx, actor.TenantID, pageID)
		if err != nil {
			return err
		}
		if err := s.slugs.WithQueries(q).Deactivate(ctx, actor.TenantID, pageID); err != nil {
			return err
		}
		if err := q.DeletePage(ctx, actor.TenantID, pageID); err != nil {
			return err
		}
		return s.events.WithQueries(q).LogPageEvent(ctx, "Page deleted", subject(actor, pageID),
			map[string]any{"slug": p.Slug, "title": p.Title})
	})
	if err != nil {
		return err
	}

	if err := s.locks.Release(ctx, actor.TenantID, pageID, actor.CallerID); err != nil {
		s.logger.Warn("releasing lock of deleted page failed", "page_id", pageID, "error", err)
	}
	s.logger.Info("page deleted", "tenant_id", actor.TenantID, "page_id", pageID)
	return nil
}

// DeleteResult is the outcome of deleting one page in a batch.
type DeleteResult struct {
	PageID  string `json:"pageId"`
	Deleted bool   `json:"deleted"`
	Error   error  `json:"-"`
}

// BulkDelete deletes each page independently. One failure does not stop the
// others; the outcome of every id is reported.
func (s *Service) BulkDelete(ctx context.Context, actor Actor, pageIDs []string) (_ []DeleteResult, err error) {
	ctx, span := s.startSpan(ctx, "BulkDelete", actor, "")
	defer func() { finishSpan(span, err) }()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if len(pageIDs) == 0 {
		return nil, &model.ValidationError{Field: "pageIds", Message: "at least one page id is required"}
	}

	results := make([]DeleteResult, 0, len(pageIDs))
	for _, id := range pageIDs {
		res := DeleteResult{PageID: id}
		if err := ValidatePageID(id); err != nil {
			res.Error = err
		} else if err := s.delete(ctx, actor, id); err != nil {
			res.Error = err
		} else {
			res.Deleted = true
		}
		results = append(results, res)
	}
	return results, nil
}
