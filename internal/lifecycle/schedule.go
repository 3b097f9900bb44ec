// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// errSkip aborts a scheduled publish that no longer applies.
var errSkip = errors.New("scheduled publish no longer applies")

// DueScheduled returns scheduled pages across all tenants that are ready to
// be published at now.
func (s *Service) DueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.Queries().ListDueScheduledPages(ctx, now.UTC(), limit)
}

// PublishScheduled publishes a page on behalf of the scheduler. It reports
// false without error when the page was unscheduled, rescheduled, or already
// published for scheduledAt, so repeated sweeps publish exactly once.
func (s *Service) PublishScheduled(ctx context.Context, tenantID, pageID string, scheduledAt time.Time) (_ bool, err error) {
	actor := systemActor(tenantID)
	ctx, span := s.startSpan(ctx, "PublishScheduled", actor, pageID)
	defer func() { finishSpan(span, err) }()

	scheduledAt = scheduledAt.UTC()
	_, err = s.mutate(ctx, actor, pageID, mutation{
		op:      "published",
		event:   fixed(EventPublish),
		system:  true,
		publish: true,
		force:   true,
		summary: "published as scheduled",
		precheck: func(cur model.Page) error {
			if cur.Status != model.PageStatusScheduled || cur.Schedule == nil || !cur.Schedule.At.Equal(scheduledAt) {
				return errSkip
			}
			return nil
		},
		apply: func(ctx context.Context, q *store.Queries, cur model.Page, next *model.Page) error {
			claimed, err := q.RecordPublish(ctx, store.RecordPublishParams{
				TenantID:      tenantID,
				PageID:        pageID,
				ScheduledAt:   scheduledAt,
				VersionNumber: cur.CurrentVersion + 1,
				PublishedAt:   s.now().UTC(),
			})
			if err != nil {
				return err
			}
			if !claimed {
				return errSkip
			}
			next.Schedule = nil
			return nil
		},
	})
	switch {
	case errors.Is(err, errSkip):
		s.logger.Debug("scheduled publish skipped", "tenant_id", tenantID, "page_id", pageID)
		return false, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}

	s.logger.Info("published scheduled page", "tenant_id", tenantID, "page_id", pageID,
		"scheduled_at", scheduledAt)
	return true, nil
}

// RecordScheduleFailure stores the outcome of a failed scheduled publish.
// next is when the scheduler may retry; it is ignored for terminal failures.
func (s *Service) RecordScheduleFailure(ctx context.Context, p model.Page, failure *model.SchedulingError, next *time.Time) error {
	if failure.Terminal {
		next = nil
	}
	msg := ""
	if failure.Err != nil {
		msg = failure.Err.Error()
	}
	updated, err := s.store.Queries().UpdateScheduleState(ctx, store.UpdateScheduleStateParams{
		TenantID:      p.TenantID,
		ID:            p.ID,
		ScheduledAt:   failure.ScheduledAt,
		Attempts:      failure.Attempts,
		LastError:     msg,
		Failed:        failure.Terminal,
		NextAttemptAt: next,
	})
	if err != nil {
		return err
	}
	if !updated {
		// Page was rescheduled or unscheduled meanwhile.
		return nil
	}

	sub := subject(systemActor(p.TenantID), p.ID)
	meta := map[string]any{
		"scheduledAt": failure.ScheduledAt.Format(time.RFC3339),
		"attempts":    failure.Attempts,
		"error":       msg,
	}
	if failure.Terminal {
		s.logger.Error("scheduled publish failed permanently", "tenant_id", p.TenantID, "page_id", p.ID,
			"attempts", failure.Attempts, "error", failure.Err)
		return s.events.LogError(ctx, model.EventCategorySchedule, "Scheduled publish failed", sub, meta)
	}
	if next != nil {
		meta["nextAttemptAt"] = next.Format(time.RFC3339)
	}
	s.logger.Warn("scheduled publish failed, will retry", "tenant_id", p.TenantID, "page_id", p.ID,
		"attempts", failure.Attempts, "error", failure.Err)
	return s.events.LogWarning(ctx, model.EventCategorySchedule, "Scheduled publish will be retried", sub, meta)
}
