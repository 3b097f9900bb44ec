// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/ocms-pages/internal/model"
)

// SweepResult counts the outcomes of one sweep.
type SweepResult struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// Sweep publishes every page that is due now. Pages are handled
// independently: a failure is recorded on its page and never stops the
// others. The returned error reports only a failure to list due pages or a
// cancelled context.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	now := s.now().UTC()

	due, err := s.publisher.DueScheduled(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}
	s.logger.Info("processing scheduled pages", "count", len(due))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for _, p := range due {
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			outcome := s.publishOne(ctx, p, now)
			s.metrics.record(ctx, outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomePublished:
				res.Published++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			case outcomeAbandoned:
				res.Abandoned++
			}
			return nil
		})
	}
	err = g.Wait()
	s.metrics.sweepDone(ctx, time.Since(start))

	if res.Published > 0 || res.Failed > 0 || res.Abandoned > 0 {
		s.logger.Info("scheduled sweep finished", "published", res.Published, "skipped", res.Skipped,
			"failed", res.Failed, "abandoned", res.Abandoned)
	}
	return res, err
}

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeSkipped   outcome = "skipped"
	outcomeFailed    outcome = "failed"
	outcomeAbandoned outcome = "abandoned"
	outcomeCancelled outcome = "cancelled"
)

func (s *Scheduler) publishOne(ctx context.Context, p model.Page, now time.Time) outcome {
	if p.Schedule == nil {
		return outcomeSkipped
	}

	ok, err := s.publisher.PublishScheduled(ctx, p.TenantID, p.ID, p.Schedule.At)
	if err == nil {
		if ok {
			return outcomePublished
		}
		return outcomeSkipped
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCancelled
	}

	attempts := p.Schedule.Attempts + 1
	failure := &model.SchedulingError{
		TenantID:    p.TenantID,
		PageID:      p.ID,
		ScheduledAt: p.Schedule.At,
		Attempts:    attempts,
		Terminal:    attempts >= s.cfg.MaxAttempts,
		Err:         err,
	}
	next := now.Add(s.backoff.Delay(attempts))
	if rerr := s.publisher.RecordScheduleFailure(ctx, p, failure, &next); rerr != nil {
		s.logger.Error("recording scheduled publish failure", "page_id", p.ID, "error", rerr,
			"cause", err)
	}
	if failure.Terminal {
		return outcomeAbandoned
	}
	return outcomeFailed
}
