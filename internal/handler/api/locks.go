// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"
)

// AcquireLockRequest is the optional body of POST /pages/{id}/lock.
type AcquireLockRequest struct {
	// TTLSeconds defaults to the configured lock TTL when zero.
	TTLSeconds int `json:"ttlSeconds,omitempty"`
}

// AcquireLock handles POST /pages/{id}/lock.
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}
	var req AcquireLockRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if req.TTLSeconds < 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "ttlSeconds must not be negative", nil)
		return
	}

	l, err := h.pages.AcquireLock(r.Context(), actor, id, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, l, nil)
}

// HeartbeatLock handles POST /pages/{id}/lock/heartbeat.
func (h *Handler) HeartbeatLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	l, err := h.pages.HeartbeatLock(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, l, nil)
}

// ReleaseLock handles DELETE /pages/{id}/lock.
func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	if err := h.pages.ReleaseLock(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForceBreakLock handles DELETE /pages/{id}/lock/force. Admin only.
func (h *Handler) ForceBreakLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requirePageID(w, r)
	if !ok {
		return
	}

	broken, err := h.pages.ForceBreakLock(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]any{"broken": broken != nil, "previous": broken}, nil)
}
