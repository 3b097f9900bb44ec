// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RestoreRequest is the optional body of a restore.
type RestoreRequest struct {
	ETag string `json:"etag,omitempty"`
}

func requireVersionNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "n")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		WriteError(w, http.StatusBadRequest, "validation_error", "version must be a positive integer",
			map[string]string{"version": raw})
		return 0, false
	}
	return n, true
}

// ListVersions handles GET /pages/{id}/versions.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	versions, err := h.pages.ListVersions(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, versions, &Meta{Count: len(versions)})
}

// GetVersion handles GET /pages/{id}/versions/{n}.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	n, ok := requireVersionNumber(w, r)
	if !ok {
		return
	}

	v, err := h.pages.GetVersion(r.Context(), actor, id, n)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, v, nil)
}

// RestoreVersion handles GET and POST /pages/{id}/versions/{n}/restore.
// The restored content becomes a new version.
func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	n, ok := requireVersionNumber(w, r)
	if !ok {
		return
	}
	var req RestoreRequest
	if r.Method != http.MethodGet && !decodeOptionalJSON(w, r, &req) {
		return
	}

	p, err := h.pages.Restore(r.Context(), actor, id, n, ifMatch(r, req.ETag))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writePage(w, http.StatusOK, p)
}
