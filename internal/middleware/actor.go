// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for caller identification,
// rate limiting, and request timeouts.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/ocms-pages/internal/lifecycle"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyActor is the context key for the request's caller identity.
const ContextKeyActor ContextKey = "actor"

// Headers identifying the caller. They are set by the fronting gateway
// after it has authenticated the request.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderCallerID  = "X-Caller-ID"
	HeaderSessionID = "X-Session-ID"
	HeaderAdmin     = "X-Admin"
)

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// Actor builds the caller identity from the request headers and stores it in
// the context. The tenant may also come from the tenantId query parameter.
// Requests without a tenant or caller are rejected with 401.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := lifecycle.Actor{
			TenantID:  strings.TrimSpace(r.Header.Get(HeaderTenantID)),
			CallerID:  strings.TrimSpace(r.Header.Get(HeaderCallerID)),
			SessionID: strings.TrimSpace(r.Header.Get(HeaderSessionID)),
		}
		if actor.TenantID == "" {
			actor.TenantID = strings.TrimSpace(r.URL.Query().Get("tenantId"))
		}
		if admin, err := strconv.ParseBool(r.Header.Get(HeaderAdmin)); err == nil {
			actor.Admin = admin
		}

		switch {
		case actor.TenantID == "":
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing tenant: set "+HeaderTenantID, nil)
			return
		case actor.CallerID == "":
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing caller: set "+HeaderCallerID, nil)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor retrieves the caller identity from the request context.
func GetActor(r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := r.Context().Value(ContextKeyActor).(lifecycle.Actor)
	return actor, ok
}

// RequireAdmin rejects callers without the admin flag. Use after Actor.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r)
		if !ok || !actor.Admin {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Administrator access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
