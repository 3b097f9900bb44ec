// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ocms-pages/internal/middleware"
)

// RouterConfig tunes the API middleware stack.
type RouterConfig struct {
	IsDevelopment  bool
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

// NewRouter mounts the API under /api/v1 and a health check at /health.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(cfg.IsDevelopment))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Get("/status", h.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Actor)
			r.Use(middleware.TenantRateLimit(cfg.RateLimit, cfg.RateBurst))
			Mount(r, h)
		})
	})
	return r
}

// Mount registers the page routes on r. Callers must install middleware.Actor.
func Mount(r chi.Router, h *Handler) {
	r.Route("/pages", func(r chi.Router) {
		r.Get("/", h.ListPages)
		r.Post("/", h.CreatePage)
		r.Delete("/", h.BulkDeletePages)
		r.Get("/slug-check", h.CheckSlug)
		r.Get("/resolve", h.ResolveSlug)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPage)
			r.Put("/", h.UpdatePage)
			r.Delete("/", h.DeletePage)

			r.Get("/versions", h.ListVersions)
			r.Get("/versions/{n}", h.GetVersion)
			r.Get("/versions/{n}/restore", h.RestoreVersion)
			r.Post("/versions/{n}/restore", h.RestoreVersion)

			r.Post("/publish", h.Publish)
			r.Post("/unpublish", h.Unpublish)
			r.Post("/unschedule", h.Unschedule)
			r.Post("/archive", h.Archive)

			r.Post("/lock", h.AcquireLock)
			r.Post("/lock/heartbeat", h.HeartbeatLock)
			r.Delete("/lock", h.ReleaseLock)
			r.Delete("/lock/force", h.ForceBreakLock)

			r.Get("/events", h.ListEvents)
		})
	})

	r.Route("/admin/jobs", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.ListJobs)
		r.Post("/{source}/{name}/trigger", h.TriggerJob)
		r.Put("/{source}/{name}/schedule", h.UpdateJobSchedule)
		r.Delete("/{source}/{name}/schedule", h.ResetJobSchedule)
	})
}
