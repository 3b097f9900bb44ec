// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/ocms-pages/internal/lifecycle"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/scheduler"
)

// UpdatePageRequest is the body of PUT /pages/{id}. The ETag may instead be
// sent in the If-Match header.
type UpdatePageRequest struct {
	Data    lifecycle.Changes       `json:"data"`
	ETag    string                  `json:"etag,omitempty"`
	Options lifecycle.UpdateOptions `json:"options"`
}

// BulkDeleteRequest is the body of DELETE /pages.
type BulkDeleteRequest struct {
	PageIDs []string `json:"pageIds"`
}

// BulkDeleteItem is the outcome for one page of a bulk delete.
type BulkDeleteItem struct {
	PageID  string       `json:"pageId"`
	Deleted bool         `json:"deleted"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ListPages handles GET /pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := lifecycle.ListFilter{
		Status:   model.PageStatus(q.Get("status")),
		PageType: q.Get("pageType"),
		ParentID: q.Get("parentId"),
		Cursor:   q.Get("cursor"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteBadRequest(w, "limit must be a positive integer", map[string]string{"limit": v})
			return
		}
		f.Limit = n
	}

	res, err := h.pages.List(r.Context(), actor, f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, res.Pages, &Meta{Count: len(res.Pages), NextCursor: res.NextCursor})
}

// CreatePage handles POST /pages.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in lifecycle.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.pages.Create(r.Context(), actor, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+p.ID)
	writePage(w, http.StatusCreated, p)
}

// GetPage handles GET /pages/{id}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	p, err := h.pages.Get(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writePage(w, http.StatusOK, p)
}

// UpdatePage handles PUT /pages/{id}.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	var req UpdatePageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.pages.Update(r.Context(), actor, id, ifMatch(r, req.ETag), req.Data, req.Options)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writePage(w, http.StatusOK, p)
}

// DeletePage handles DELETE /pages/{id}.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	if err := h.pages.Delete(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, BulkDeleteItem{PageID: id, Deleted: true}, nil)
}

// BulkDeletePages handles DELETE /pages. Every id gets its own outcome.
func (h *Handler) BulkDeletePages(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := h.pages.BulkDelete(r.Context(), actor, req.PageIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]BulkDeleteItem, len(results))
	for i, res := range results {
		items[i] = BulkDeleteItem{PageID: res.PageID, Deleted: res.Deleted}
		if res.Error != nil {
			items[i].Error = &ErrorDetail{Code: errorCode(res.Error), Message: res.Error.Error()}
		}
	}
	WriteSuccess(w, items, &Meta{Count: len(items)})
}

// errorCode names err the way writeServiceError does.
func errorCode(err error) string {
	var (
		verr       *model.ValidationError
		conflict   *model.ConflictError
		lockDenied *model.LockDeniedError
		collision  *model.SlugCollisionError
		transition *model.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		return "validation_error"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &lockDenied):
		return "locked"
	case errors.Is(err, model.ErrLocked):
		return "lock_required"
	case errors.As(err, &collision):
		return "slug_collision"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.Is(err, model.ErrNotFound), errors.Is(err, scheduler.ErrJobNotFound):
		return "not_found"
	case errors.Is(err, model.ErrForbidden):
		return "forbidden"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal_error"
	}
}

// CheckSlug handles GET /pages/slug-check.
func (h *Handler) CheckSlug(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	slug := strings.TrimSpace(q.Get("slug"))

	available, err := h.pages.CheckSlug(r.Context(), actor, slug, q.Get("excludeId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]any{"slug": slug, "available": available}, nil)
}

// ResolveSlug handles GET /pages/resolve.
func (h *Handler) ResolveSlug(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	res, err := h.pages.ResolveSlug(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("slug")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, res, nil)
}

// ListEvents handles GET /pages/{id}/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteBadRequest(w, "limit must be a positive integer", map[string]string{"limit": v})
			return
		}
		limit = n
	}

	events, err := h.pages.Events(r.Context(), actor, id, r.URL.Query().Get("category"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, events, &Meta{Count: len(events)})
}
