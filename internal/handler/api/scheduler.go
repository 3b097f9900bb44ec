// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pages/internal/scheduler"
)

// UpdateScheduleRequest is the body of PUT /admin/jobs/{source}/{name}/schedule.
type UpdateScheduleRequest struct {
	Schedule string `json:"schedule"`
}

func (h *Handler) requireJobs(w http.ResponseWriter) bool {
	if h.jobs == nil {
		WriteNotFound(w, "No background jobs are registered")
		return false
	}
	return true
}

// ListJobs handles GET /admin/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	jobs := h.jobs.List()
	WriteSuccess(w, jobs, &Meta{Count: len(jobs)})
}

// TriggerJob handles POST /admin/jobs/{source}/{name}/trigger.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.jobs.TriggerNow(source, name); err != nil {
		h.writeJobError(w, r, err)
		return
	}
	h.logger.Info("job triggered manually", "source", source, "job", name)
	WriteSuccess(w, map[string]string{"source": source, "name": name, "status": "completed"}, nil)
}

// UpdateJobSchedule handles PUT /admin/jobs/{source}/{name}/schedule.
func (h *Handler) UpdateJobSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	var req UpdateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := scheduler.ValidateSpec(req.Schedule); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), map[string]string{"schedule": req.Schedule})
		return
	}

	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.jobs.UpdateSchedule(source, name, req.Schedule); err != nil {
		h.writeJobError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]string{"source": source, "name": name, "schedule": req.Schedule}, nil)
}

// ResetJobSchedule handles DELETE /admin/jobs/{source}/{name}/schedule.
func (h *Handler) ResetJobSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.jobs.ResetSchedule(source, name); err != nil {
		h.writeJobError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		WriteNotFound(w, err.Error())
		return
	}
	h.writeServiceError(w, r, err)
}
