// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("etag mismatch")
	ErrLocked       = errors.New("page is locked")
	ErrSlugConflict = errors.New("slug already in use")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError is returned when input is rejected before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is returned when a page, version, slug, or lock does not exist
// within the caller's tenant.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError is returned when the supplied ETag no longer matches the
// stored page. Current holds the page as it is now.
type ConflictError struct {
	Supplied string
	Current  Page
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("page %s was modified: etag %q is stale, current version %d",
		e.Current.ID, e.Supplied, e.Current.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// LockDeniedError is returned when another user holds the edit lock.
type LockDeniedError struct {
	Owner     string
	ExpiresAt time.Time
}

func (e *LockDeniedError) Error() string {
	return fmt.Sprintf("page is locked by %s until %s", e.Owner, e.ExpiresAt.Format(time.RFC3339))
}

func (e *LockDeniedError) Is(target error) bool {
	return target == ErrLocked
}

// SlugCollisionError is returned when a slug is already reserved in the tenant.
type SlugCollisionError struct {
	TenantID string
	Slug     string
}

func (e *SlugCollisionError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

func (e *SlugCollisionError) Is(target error) bool {
	return target == ErrSlugConflict
}

// TransitionError is returned when a lifecycle event is not allowed from the
// page's current status.
type TransitionError struct {
	Event   string
	Current PageStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s page in status %q", e.Event, e.Current)
}

// SchedulingError describes a failed scheduled publication attempt.
type SchedulingError struct {
	TenantID    string
	PageID      string
	ScheduledAt time.Time
	Attempts    int
	Terminal    bool
	Err         error
}

func (e *SchedulingError) Error() string {
	state := "will retry"
	if e.Terminal {
		state = "giving up"
	}
	return fmt.Sprintf("scheduled publish of page %s failed after %d attempt(s), %s: %v",
		e.PageID, e.Attempts, state, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}
