// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Snapshot is the full versioned payload of a page.
type Snapshot struct {
	Title    string     `json:"title"`
	Slug     string     `json:"slug"`
	Blocks   []Block    `json:"blocks"`
	Content  string     `json:"content"`
	SEO      SEO        `json:"seo"`
	Settings Settings   `json:"settings"`
	Status   PageStatus `json:"status"`
}

// Version is an immutable snapshot of a page at a point in its history.
type Version struct {
	ID            string    `json:"id"`
	PageID        string    `json:"pageId"`
	VersionNumber int       `json:"versionNumber"`
	Payload       Snapshot  `json:"payload"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	Changes       string    `json:"changes"`
	AutoSave      bool      `json:"autoSave"`
}
