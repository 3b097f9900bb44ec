// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API for page lifecycle operations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pages/internal/etag"
	"github.com/olegiv/ocms-pages/internal/lifecycle"
	"github.com/olegiv/ocms-pages/internal/middleware"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/scheduler"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// JobRegistry exposes the background jobs to administrators.
type JobRegistry interface {
	List() []scheduler.JobInfo
	TriggerNow(source, name string) error
	UpdateSchedule(source, name, schedule string) error
	ResetSchedule(source, name string) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	pages  *lifecycle.Service
	jobs   JobRegistry
	db     Pinger
	logger *slog.Logger
}

// NewHandler creates a new API handler. jobs and db may be nil.
func NewHandler(pages *lifecycle.Service, jobs JobRegistry, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pages: pages, jobs: jobs, db: db, logger: logger}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information. Current carries the stored page
// on an ETag conflict.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Current *model.Page       `json:"current,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// writeServiceError maps a lifecycle error to its HTTP response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr       *model.ValidationError
		conflict   *model.ConflictError
		lockDenied *model.LockDeniedError
		collision  *model.SlugCollisionError
		transition *model.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		var details map[string]string
		if verr.Field != "" {
			details = map[string]string{verr.Field: verr.Message}
		}
		WriteError(w, http.StatusBadRequest, "validation_error", verr.Error(), details)
	case errors.As(err, &conflict):
		current := conflict.Current
		w.Header().Set("ETag", etag.Quote(current.ETag))
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorDetail{
			Code:    "conflict",
			Message: "The page was modified by someone else. Reload it and apply your changes again.",
			Current: &current,
		}})
	case errors.As(err, &lockDenied):
		WriteError(w, http.StatusLocked, "locked", lockDenied.Error(), map[string]string{
			"owner":     lockDenied.Owner,
			"expiresAt": lockDenied.ExpiresAt.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, model.ErrLocked):
		WriteError(w, http.StatusLocked, "lock_required", err.Error(), nil)
	case errors.As(err, &collision):
		WriteError(w, http.StatusConflict, "slug_collision", collision.Error(), map[string]string{"slug": collision.Slug})
	case errors.As(err, &transition):
		WriteError(w, http.StatusConflict, "invalid_transition", transition.Error(), map[string]string{
			"event":  transition.Event,
			"status": string(transition.Current),
		})
	case errors.Is(err, model.ErrNotFound), errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrForbidden):
		WriteForbidden(w, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusServiceUnavailable, "timeout", "Request was cancelled", nil)
	default:
		h.logger.Error("api request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteInternalError(w, "Internal server error")
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	if r.Body == nil {
		if optional {
			return true
		}
		WriteBadRequest(w, "Request body is required", nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil {
		return true
	}

	var unknownBlock *model.UnknownBlockTypeError
	switch {
	case errors.Is(err, io.EOF) && optional:
		return true
	case errors.Is(err, io.EOF):
		WriteBadRequest(w, "Request body is required", nil)
	case errors.As(err, &unknownBlock):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), map[string]string{"blocks": err.Error()})
	default:
		WriteBadRequest(w, "Invalid JSON body: "+err.Error(), nil)
	}
	return false
}

// requireActor returns the caller identity set by middleware.Actor.
func requireActor(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := middleware.GetActor(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Caller identity missing", nil)
	}
	return actor, ok
}

// requirePageID reads and validates the {id} URL parameter.
func requirePageID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := lifecycle.ValidatePageID(id); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), map[string]string{"id": "invalid page id"})
		return "", false
	}
	return id, true
}

// ifMatch returns the body ETag, falling back to the If-Match header.
func ifMatch(r *http.Request, body string) string {
	if body != "" {
		return etag.Normalize(body)
	}
	return etag.Normalize(r.Header.Get("If-Match"))
}

// writePage writes p with its ETag header.
func writePage(w http.ResponseWriter, status int, p model.Page) {
	w.Header().Set("ETag", etag.Quote(p.ETag))
	WriteJSON(w, status, Response{Data: p})
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: "v1"}, nil)
}

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Version: "v1"})
			return
		}
	}
	WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok", Version: "v1"})
}
