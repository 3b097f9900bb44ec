// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lifecycle is the single entry point for page operations. It keeps
// slugs, versions, ETags, edit locks, and status transitions consistent.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/olegiv/ocms-pages/internal/blocks"
	"github.com/olegiv/ocms-pages/internal/etag"
	"github.com/olegiv/ocms-pages/internal/history"
	"github.com/olegiv/ocms-pages/internal/lock"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/service"
	"github.com/olegiv/ocms-pages/internal/slug"
	"github.com/olegiv/ocms-pages/internal/store"
)

const tracerName = "github.com/olegiv/ocms-pages/internal/lifecycle"

// SystemActorID is recorded as the author of changes made by the scheduler.
const SystemActorID = "system"

// ErrLockRequired is returned when edit locks are mandatory and the caller
// holds none.
var ErrLockRequired = fmt.Errorf("%w: acquire the edit lock first", model.ErrLocked)

// Actor identifies the caller of an operation. It is passed explicitly on
// every call instead of being read from ambient state.
type Actor struct {
	TenantID  string
	CallerID  string
	SessionID string
	Admin     bool
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.TenantID) == "" {
		return &model.ValidationError{Field: "tenantId", Message: "is required"}
	}
	if strings.TrimSpace(a.CallerID) == "" {
		return &model.ValidationError{Field: "callerId", Message: "is required"}
	}
	return nil
}

func systemActor(tenantID string) Actor {
	return Actor{TenantID: tenantID, CallerID: SystemActorID, Admin: true}
}

// ValidatePageID rejects empty, placeholder, and non-UUID page ids.
func ValidatePageID(id string) error {
	switch strings.TrimSpace(id) {
	case "", "undefined", "null":
		return &model.ValidationError{Field: "id", Message: "page id is required"}
	}
	if err := uuid.Validate(id); err != nil {
		return &model.ValidationError{Field: "id", Message: "page id must be a UUID"}
	}
	return nil
}

// Service orchestrates page lifecycle operations.
type Service struct {
	store   *store.Store
	guard   *etag.Guard
	locks   *lock.Manager
	blocks  *blocks.Validator
	slugs   *slug.Registry
	history *history.Manager
	events  *service.EventService
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	requireEditLock bool
	retention       int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRequireEditLock makes holding the edit lock mandatory for user mutations.
func WithRequireEditLock(required bool) Option {
	return func(s *Service) { s.requireEditLock = required }
}

// WithVersionRetention keeps only the newest n autosave versions; 0 keeps all.
func WithVersionRetention(n int) Option {
	return func(s *Service) { s.retention = n }
}

// WithBlockValidator sets the block validator.
func WithBlockValidator(v *blocks.Validator) Option {
	return func(s *Service) { s.blocks = v }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New creates a Service.
func New(st *store.Store, guard *etag.Guard, locks *lock.Manager, opts ...Option) (*Service, error) {
	if st == nil || guard == nil || locks == nil {
		return nil, errors.New("lifecycle: store, etag guard, and lock manager are required")
	}
	s := &Service{
		store:  st,
		guard:  guard,
		locks:  locks,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blocks == nil {
		v, err := blocks.New()
		if err != nil {
			return nil, fmt.Errorf("lifecycle: %w", err)
		}
		s.blocks = v
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.slugs = slug.New(st.Queries())
	s.history = history.New(st.Queries(), s.retention)
	s.events = service.NewEventService(st.Queries()).WithClock(s.now)
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string, actor Actor, pageID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("tenant.id", actor.TenantID)}
	if pageID != "" {
		attrs = append(attrs, attribute.String("page.id", pageID))
	}
	return s.tracer.Start(ctx, "lifecycle."+name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// overlay fills the non-persisted lock fields and slug history of p.
func (s *Service) overlay(ctx context.Context, p *model.Page) error {
	l, err := s.locks.Current(ctx, p.TenantID, p.ID)
	if err != nil {
		s.logger.Warn("reading lock state failed", "page_id", p.ID, "error", err)
		l = nil
	}
	p.ApplyLock(l)

	hist, err := s.slugs.History(ctx, p.TenantID, p.ID)
	if err != nil {
		return err
	}
	p.SlugHistory = hist
	return nil
}

// checkLock enforces edit lock ownership before a user mutation.
func (s *Service) checkLock(ctx context.Context, actor Actor, pageID string) error {
	if !s.requireEditLock {
		return s.locks.Check(ctx, actor.TenantID, pageID, actor.CallerID, actor.SessionID)
	}
	cur, err := s.locks.Current(ctx, actor.TenantID, pageID)
	if err != nil {
		return err
	}
	if cur == nil {
		return ErrLockRequired
	}
	if !cur.HeldBySession(actor.CallerID, actor.SessionID) {
		return &model.LockDeniedError{Owner: cur.OwnerID, ExpiresAt: cur.ExpiresAt}
	}
	return nil
}

func subject(actor Actor, pageID string) service.Subject {
	return service.Subject{TenantID: actor.TenantID, PageID: pageID, ActorID: actor.CallerID}
}

// mutation describes one change to an existing page.
type mutation struct {
	op    string
	event func(current model.PageStatus) Event
	// etag is the caller's ETag; it is validated when non-empty.
	etag     string
	system   bool
	autoSave bool
	summary  string
	redirect bool
	// force records a new version even when content is unchanged.
	force bool
	// publish stamps publishedAt and publishedVersionId with the new version.
	publish bool
	// precheck may reject or skip the change before the transition is validated.
	precheck func(cur model.Page) error
	apply    func(ctx context.Context, q *store.Queries, cur model.Page, next *model.Page) error
}

func fixed(e Event) func(model.PageStatus) Event {
	return func(model.PageStatus) Event { return e }
}

// mutate runs m against the page in one transaction. Unchanged pages are
// returned as they are without a new version.
func (s *Service) mutate(ctx context.Context, actor Actor, pageID string, m mutation) (model.Page, error) {
	if !m.system {
		if err := s.checkLock(ctx, actor, pageID); err != nil {
			return model.Page{}, err
		}
	}

	var out model.Page
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		cur, err := q.GetPage(ctx, actor.TenantID, pageID)
		if err != nil {
			return err
		}
		if m.etag != "" {
			if err := s.guard.Validate(m.etag, cur); err != nil {
				return err
			}
		}
		if m.precheck != nil {
			if err := m.precheck(cur); err != nil {
				return err
			}
		}

		event := m.event(cur.Status)
		status, err := Apply(ctx, cur.Status, event)
		if err != nil {
			return err
		}

		next := cur
		next.Blocks = cur.Snapshot().Blocks
		next.Status = status
		if m.apply != nil {
			if err := m.apply(ctx, q, cur, &next); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		events := s.events.WithQueries(q)

		if !m.force && history.Equal(cur.Snapshot(), next.Snapshot()) {
			if bookkeepingEqual(cur, next) {
				out = cur
				return nil
			}
			if err := s.write(ctx, q, next, cur, m.etag); err != nil {
				return err
			}
			out = next
			return events.LogPageEvent(ctx, "Page "+m.op, subject(actor, pageID), scheduleMeta(next))
		}

		if err := s.syncSlug(ctx, q, actor, cur, next, now, m.redirect); err != nil {
			return err
		}

		next.CurrentVersion = cur.CurrentVersion + 1
		next.LastModifiedBy = actor.CallerID
		next.LastModifiedAt = now
		if next.ETag, err = s.guard.Compute(next); err != nil {
			return err
		}

		summary := m.summary
		if summary == "" {
			summary = history.Summarize(cur.Snapshot(), next.Snapshot())
		}
		hist := s.history.WithQueries(q)
		v, err := hist.Snapshot(ctx, history.SnapshotParams{
			Page:      next,
			Author:    actor.CallerID,
			Changes:   summary,
			AutoSave:  m.autoSave,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if m.publish {
			next.PublishedAt = &now
			next.PublishedVersionID = v.ID
		}

		if err := s.write(ctx, q, next, cur, m.etag); err != nil {
			return err
		}
		if _, err := hist.Prune(ctx, actor.TenantID, pageID, next.PublishedVersionID); err != nil {
			return err
		}

		meta := scheduleMeta(next)
		meta["version"] = next.CurrentVersion
		meta["changes"] = summary
		out = next
		return events.LogPageEvent(ctx, "Page "+m.op, subject(actor, pageID), meta)
	})
	if err != nil {
		return model.Page{}, s.decorate(ctx, err)
	}

	if err := s.overlay(ctx, &out); err != nil {
		return model.Page{}, err
	}
	s.logger.Debug("page mutated", "op", m.op, "tenant_id", actor.TenantID, "page_id", pageID,
		"version", out.CurrentVersion)
	return out, nil
}

// write persists next with compare-and-swap on the state read as cur.
func (s *Service) write(ctx context.Context, q *store.Queries, next, cur model.Page, supplied string) error {
	err := q.UpdatePage(ctx, next, cur.ETag, cur.CurrentVersion)
	if !errors.Is(err, store.ErrStaleWrite) {
		return err
	}
	latest, gerr := q.GetPage(ctx, cur.TenantID, cur.ID)
	if gerr != nil {
		return gerr
	}
	if supplied == "" {
		supplied = cur.ETag
	}
	return &model.ConflictError{Supplied: etag.Normalize(supplied), Current: latest}
}

// decorate completes the current page carried by a conflict.
func (s *Service) decorate(ctx context.Context, err error) error {
	var conflict *model.ConflictError
	if errors.As(err, &conflict) {
		if oerr := s.overlay(ctx, &conflict.Current); oerr != nil {
			s.logger.Warn("decorating conflict failed", "page_id", conflict.Current.ID, "error", oerr)
		}
	}
	return err
}

// syncSlug keeps the slug reservation in line with the page's slug and status.
func (s *Service) syncSlug(ctx context.Context, q *store.Queries, actor Actor, cur, next model.Page, now time.Time, redirect bool) error {
	reg := s.slugs.WithQueries(q)
	wasLive := cur.Status != model.PageStatusArchived
	isLive := next.Status != model.PageStatusArchived

	switch {
	case wasLive && !isLive:
		return reg.Release(ctx, actor.TenantID, cur.ID)
	case !wasLive && isLive:
		return reg.Reserve(ctx, actor.TenantID, next.Slug, cur.ID, now)
	case isLive && cur.Slug != next.Slug:
		return reg.Rename(ctx, slug.RenameParams{
			TenantID:  actor.TenantID,
			PageID:    cur.ID,
			OldSlug:   cur.Slug,
			NewSlug:   next.Slug,
			ChangedBy: actor.CallerID,
			ChangedAt: now,
			Redirect:  redirect,
		})
	}
	return nil
}

func bookkeepingEqual(a, b model.Page) bool {
	if a.PublishedVersionID != b.PublishedVersionID || !timePtrEqual(a.PublishedAt, b.PublishedAt) {
		return false
	}
	if (a.Schedule == nil) != (b.Schedule == nil) {
		return false
	}
	if a.Schedule == nil {
		return true
	}
	return a.Schedule.At.Equal(b.Schedule.At) &&
		a.Schedule.Attempts == b.Schedule.Attempts &&
		a.Schedule.Failed == b.Schedule.Failed &&
		a.Schedule.LastError == b.Schedule.LastError &&
		timePtrEqual(a.Schedule.NextAttemptAt, b.Schedule.NextAttemptAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func scheduleMeta(p model.Page) map[string]any {
	meta := map[string]any{"status": string(p.Status)}
	if p.Schedule != nil {
		meta["scheduledAt"] = p.Schedule.At.Format(time.RFC3339)
	}
	return meta
}
