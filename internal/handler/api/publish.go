// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/olegiv/ocms-pages/internal/lifecycle"
	"github.com/olegiv/ocms-pages/internal/model"
)

// TransitionRequest is the optional body of unpublish, unschedule and archive.
type TransitionRequest struct {
	ETag string `json:"etag,omitempty"`
}

// Publish handles POST /pages/{id}/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	var req lifecycle.PublishRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.ETag = ifMatch(r, req.ETag)

	p, err := h.pages.Publish(r.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writePage(w, http.StatusOK, p)
}

type transitionFunc func(ctx context.Context, actor lifecycle.Actor, pageID, etag string) (model.Page, error)

func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := requirePageID(w, r)
		if !ok {
			return
		}
		var req TransitionRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}

		p, err := fn(r.Context(), actor, id, ifMatch(r, req.ETag))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writePage(w, http.StatusOK, p)
	}
}

// Unpublish handles POST /pages/{id}/unpublish.
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(h.pages.Unpublish)(w, r)
}

// Unschedule handles POST /pages/{id}/unschedule.
func (h *Handler) Unschedule(w http.ResponseWriter, r *http.Request) {
	h.transition(h.pages.Unschedule)(w, r)
}

// Archive handles POST /pages/{id}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(h.pages.Archive)(w, r)
}
