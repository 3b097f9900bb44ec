// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// PageStatus is the lifecycle state of a page.
type PageStatus string

// Page statuses
const (
	PageStatusDraft     PageStatus = "draft"
	PageStatusPublished PageStatus = "published"
	PageStatusScheduled PageStatus = "scheduled"
	PageStatusArchived  PageStatus = "archived"
)

// Valid reports whether s is a known page status.
func (s PageStatus) Valid() bool {
	switch s {
	case PageStatusDraft, PageStatusPublished, PageStatusScheduled, PageStatusArchived:
		return true
	}
	return false
}

// Page types
const (
	PageTypeDefault = "default"
	PageTypeLanding = "landing"
	PageTypeBlog    = "blog"
	PageTypeSystem  = "system"
)

// Page visibility values
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityAuthOnly = "auth-only"
)

// SEO holds search and social metadata. The lifecycle engine stores it as-is.
type SEO struct {
	MetaTitle       string            `json:"metaTitle,omitempty"`
	MetaDescription string            `json:"metaDescription,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	Robots          string            `json:"robots,omitempty"`
	CanonicalURL    string            `json:"canonicalUrl,omitempty"`
	OpenGraph       map[string]string `json:"openGraph,omitempty"`
	Twitter         map[string]string `json:"twitter,omitempty"`
}

// Settings holds presentation and hierarchy settings of a page.
type Settings struct {
	PageType   string `json:"pageType"`
	Visibility string `json:"visibility"`
	IsHomepage bool   `json:"isHomepage"`
	ParentID   string `json:"parentId,omitempty"`
	Order      int    `json:"order"`
}

// WithDefaults fills empty settings fields with their default values.
func (s Settings) WithDefaults() Settings {
	if s.PageType == "" {
		s.PageType = PageTypeDefault
	}
	if s.Visibility == "" {
		s.Visibility = VisibilityPublic
	}
	return s
}

// SlugHistoryEntry records a slug a page used to have.
type SlugHistoryEntry struct {
	Slug            string    `json:"slug"`
	ChangedAt       time.Time `json:"changedAt"`
	ChangedBy       string    `json:"changedBy"`
	RedirectEnabled bool      `json:"redirectEnabled"`
}

// Schedule is the deferred publication state of a scheduled page.
type Schedule struct {
	At            time.Time  `json:"at"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	Failed        bool       `json:"failed"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
}

// Page represents a tenant-scoped CMS page.
type Page struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Title   string  `json:"title"`
	Slug    string  `json:"slug"`
	Blocks  []Block `json:"blocks"`
	Content string  `json:"content,omitempty"`

	Status PageStatus `json:"status"`

	AuthorID       string    `json:"authorId"`
	LastModifiedBy string    `json:"lastModifiedBy"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`

	SEO      SEO      `json:"seo"`
	Settings Settings `json:"settings"`

	ETag           string `json:"etag"`
	CurrentVersion int    `json:"currentVersion"`

	// Lock fields are filled from the lock manager on read and never persisted.
	IsLocked       bool       `json:"isLocked"`
	LockOwner      string     `json:"lockOwner,omitempty"`
	LockAcquiredAt *time.Time `json:"lockAcquiredAt,omitempty"`
	LockExpiresAt  *time.Time `json:"lockExpiresAt,omitempty"`

	SlugHistory []SlugHistoryEntry `json:"slugHistory"`

	PublishedAt        *time.Time `json:"publishedAt,omitempty"`
	PublishedVersionID string     `json:"publishedVersionId,omitempty"`
	Schedule           *Schedule  `json:"schedule,omitempty"`
}

// IsPublished returns true if the page is published.
func (p *Page) IsPublished() bool {
	return p.Status == PageStatusPublished
}

// IsDraft returns true if the page is a draft.
func (p *Page) IsDraft() bool {
	return p.Status == PageStatusDraft
}

// IsArchived returns true if the page is archived.
func (p *Page) IsArchived() bool {
	return p.Status == PageStatusArchived
}

// ScheduledAt returns the pending publication time, or nil.
func (p *Page) ScheduledAt() *time.Time {
	if p.Schedule == nil {
		return nil
	}
	at := p.Schedule.At
	return &at
}

// ApplyLock overlays the given lock onto the page. A nil lock clears the lock fields.
func (p *Page) ApplyLock(l *Lock) {
	if l == nil {
		p.IsLocked = false
		p.LockOwner = ""
		p.LockAcquiredAt = nil
		p.LockExpiresAt = nil
		return
	}
	acquired, expires := l.AcquiredAt, l.ExpiresAt
	p.IsLocked = true
	p.LockOwner = l.OwnerID
	p.LockAcquiredAt = &acquired
	p.LockExpiresAt = &expires
}

// Snapshot returns the versioned content of the page.
func (p *Page) Snapshot() Snapshot {
	blocks := make([]Block, len(p.Blocks))
	copy(blocks, p.Blocks)
	return Snapshot{
		Title:    p.Title,
		Slug:     p.Slug,
		Blocks:   blocks,
		Content:  p.Content,
		SEO:      p.SEO,
		Settings: p.Settings,
		Status:   p.Status,
	}
}

// Summary returns the listing representation of the page.
func (p *Page) Summary() PageSummary {
	return PageSummary{
		ID:             p.ID,
		TenantID:       p.TenantID,
		Title:          p.Title,
		Slug:           p.Slug,
		Status:         p.Status,
		PageType:       p.Settings.PageType,
		ParentID:       p.Settings.ParentID,
		CurrentVersion: p.CurrentVersion,
		LastModifiedBy: p.LastModifiedBy,
		LastModifiedAt: p.LastModifiedAt,
		PublishedAt:    p.PublishedAt,
		ScheduledAt:    p.ScheduledAt(),
	}
}

// PageSummary is a lightweight page representation used in listings.
type PageSummary struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Status         PageStatus `json:"status"`
	PageType       string     `json:"pageType"`
	ParentID       string     `json:"parentId,omitempty"`
	CurrentVersion int        `json:"currentVersion"`
	LastModifiedBy string     `json:"lastModifiedBy"`
	LastModifiedAt time.Time  `json:"lastModifiedAt"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
}
