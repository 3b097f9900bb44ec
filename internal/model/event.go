// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryPage     = "page"
	EventCategoryLock     = "lock"
	EventCategorySlug     = "slug"
	EventCategoryVersion  = "version"
	EventCategorySchedule = "schedule"
	EventCategorySystem   = "system"
)

// Event represents an audit log entry.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	TenantID  string    `json:"tenantId,omitempty"`
	PageID    string    `json:"pageId,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	Metadata  string    `json:"metadata"` // JSON string
	CreatedAt time.Time `json:"createdAt"`
}
