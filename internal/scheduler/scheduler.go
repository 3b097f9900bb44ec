// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler publishes scheduled pages when they fall due and runs
// periodic housekeeping.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-pages/internal/model"
)

const meterName = "github.com/olegiv/ocms-pages/internal/scheduler"

// Job names
const (
	SourceCore     = "core"
	JobPublish     = "publish-scheduled"
	JobPruneEvents = "prune-events"
)

// Publisher publishes due pages. The lifecycle service implements it.
type Publisher interface {
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Page, error)
	PublishScheduled(ctx context.Context, tenantID, pageID string, scheduledAt time.Time) (bool, error)
	RecordScheduleFailure(ctx context.Context, p model.Page, failure *model.SchedulingError, next *time.Time) error
}

// EventPruner removes audit events older than maxAge.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Config tunes the publish sweep.
type Config struct {
	// Spec is the cron expression of the sweep.
	Spec string
	// MaxAttempts is how often a failing page is tried before it is marked failed.
	MaxAttempts int
	// Concurrency bounds how many pages are published at once.
	Concurrency int
	// Rate limits publications per second; 0 means unlimited.
	Rate      float64
	RetryBase time.Duration
	RetryMax  time.Duration
	// BatchSize caps the pages handled per sweep.
	BatchSize int

	// EventRetention enables the audit log pruning job when positive.
	EventRetention time.Duration
	PruneSpec      string
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Spec:        "@every 30s",
		MaxAttempts: 5,
		Concurrency: 4,
		Rate:        10,
		RetryBase:   30 * time.Second,
		RetryMax:    15 * time.Minute,
		BatchSize:   100,
		PruneSpec:   "@daily",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Spec == "" {
		c.Spec = d.Spec
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PruneSpec == "" {
		c.PruneSpec = d.PruneSpec
	}
	return c
}

// Scheduler handles scheduled tasks like publishing pages.
type Scheduler struct {
	publisher Publisher
	pruner    EventPruner
	registry  *Registry
	cfg       Config
	cron      *cron.Cron
	limiter   *rate.Limiter
	backoff   Strategy
	logger    *slog.Logger
	now       func() time.Time
	metrics   *metrics

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithEventPruner enables pruning of the audit log.
func WithEventPruner(p EventPruner) Option {
	return func(s *Scheduler) { s.pruner = p }
}

// WithRegistry records the scheduler's jobs in r.
func WithRegistry(r *Registry) Option {
	return func(s *Scheduler) { s.registry = r }
}

// WithMeter sets the meter used for sweep metrics.
func WithMeter(m metric.Meter) Option {
	return func(s *Scheduler) { s.metrics = newMetrics(m) }
}

// WithBackoff replaces the retry delay strategy.
func WithBackoff(b Strategy) Option {
	return func(s *Scheduler) { s.backoff = b }
}

// New creates a new scheduler instance.
func New(publisher Publisher, cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		backoff:   NewExponential(cfg.RetryBase, cfg.RetryMax),
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	s.limiter = rate.NewLimiter(limit, max(1, cfg.Concurrency))
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry(nil, logger)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(otel.Meter(meterName))
	}

	cl := cronLogger{logger: logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	return s
}

// Registry returns the job registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.addJob(ctx, JobPublish, "Publish pages whose scheduled time has passed", s.cfg.Spec, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}); err != nil {
		cancel()
		return err
	}
	if s.pruner != nil && s.cfg.EventRetention > 0 {
		if err := s.addJob(ctx, JobPruneEvents, "Delete audit events past the retention period", s.cfg.PruneSpec, s.pruneEvents); err != nil {
			cancel()
			return err
		}
	}

	s.ctx, s.cancel = ctx, cancel
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()), "spec", s.cfg.Spec)
	return nil
}

func (s *Scheduler) addJob(ctx context.Context, name, description, defaultSpec string, run func(context.Context) error) error {
	spec := s.registry.EffectiveSchedule(SourceCore, name, defaultSpec)
	job := cron.FuncJob(func() {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	s.registry.Register(SourceCore, name, description, defaultSpec, spec, s.cron, id, job, func() error {
		return run(ctx)
	})
	return nil
}

// Stop cancels running sweeps and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) pruneEvents(ctx context.Context) error {
	n, err := s.pruner.DeleteOldEvents(ctx, s.cfg.EventRetention)
	if err != nil {
		return fmt.Errorf("pruning events: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned audit events", "count", n, "older_than", s.cfg.EventRetention)
	}
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
