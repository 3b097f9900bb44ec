// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-pages/internal/store"
)

// ErrJobNotFound is returned for operations on an unregistered job.
var ErrJobNotFound = errors.New("job not found")

// specParser accepts standard five-field expressions and descriptors such as @every.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a cron expression the scheduler accepts.
func ValidateSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	source          string
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule (override or default)
	cronInstance    *cron.Cron
	entryID         cron.EntryID
	job             cron.Job
	triggerFunc     func() error // nil if manual trigger not allowed
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Source          string    `json:"source"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"defaultSchedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"isOverridden"`
	LastRun         time.Time `json:"lastRun"`
	NextRun         time.Time `json:"nextRun"`
	CanTrigger      bool      `json:"canTrigger"`
}

// Registry tracks the scheduler's cron jobs and persists schedule overrides.
type Registry struct {
	queries *store.Queries
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	jobs    map[string]*registeredJob // key: "source:name"
}

// NewRegistry creates a registry. Overrides are kept in the database when
// queries is non-nil.
func NewRegistry(queries *store.Queries, logger *slog.Logger) *Registry {
	return &Registry{
		queries: queries,
		logger:  logger,
		now:     time.Now,
		jobs:    make(map[string]*registeredJob),
	}
}

func jobKey(source, name string) string {
	return source + ":" + name
}

// EffectiveSchedule returns the stored override of a job, or defaultSchedule.
// Call it before adding the job to cron.
func (r *Registry) EffectiveSchedule(source, name, defaultSchedule string) string {
	if r.queries == nil {
		return defaultSchedule
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	override, err := r.queries.GetSchedulerOverride(ctx, source, name)
	if err != nil {
		r.logger.Warn("reading schedule override failed", "source", source, "name", name, "error", err)
		return defaultSchedule
	}
	if override == "" || ValidateSpec(override) != nil {
		return defaultSchedule
	}
	return override
}

// Register records a job after it has been added to a cron instance.
func (r *Registry) Register(source, name, description, defaultSchedule, schedule string, cronInst *cron.Cron, entryID cron.EntryID, job cron.Job, triggerFunc func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[jobKey(source, name)] = &registeredJob{
		source:          source,
		name:            name,
		description:     description,
		defaultSchedule: defaultSchedule,
		schedule:        schedule,
		cronInstance:    cronInst,
		entryID:         entryID,
		job:             job,
		triggerFunc:     triggerFunc,
	}

	r.logger.Debug("registered scheduled job", "source", source, "name", name, "schedule", schedule)
}

// List returns all registered jobs sorted by source then name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		info := JobInfo{
			Source:          job.source,
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			CanTrigger:      job.triggerFunc != nil,
		}
		if job.cronInstance != nil {
			entry := job.cronInstance.Entry(job.entryID)
			info.NextRun = entry.Next
			info.LastRun = entry.Prev
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// TriggerNow runs a job immediately.
func (r *Registry) TriggerNow(source, name string) error {
	r.mu.RLock()
	job, ok := r.jobs[jobKey(source, name)]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s:%s", ErrJobNotFound, source, name)
	}
	if job.triggerFunc == nil {
		return fmt.Errorf("manual trigger not available for: %s:%s", source, name)
	}

	r.logger.Info("manually triggering job", "source", source, "name", name)
	return job.triggerFunc()
}

// UpdateSchedule moves a job to newSchedule and persists the override.
func (r *Registry) UpdateSchedule(source, name, newSchedule string) error {
	if err := ValidateSpec(newSchedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return fmt.Errorf("%w: %s:%s", ErrJobNotFound, source, name)
	}
	if err := r.reschedule(job, newSchedule); err != nil {
		return err
	}

	if r.queries != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.queries.UpsertSchedulerOverride(ctx, source, name, newSchedule, r.now().UTC()); err != nil {
			r.logger.Error("failed to persist schedule override", "error", err, "source", source, "name", name)
		}
	}

	r.logger.Info("updated job schedule", "source", source, "name", name, "schedule", newSchedule)
	return nil
}

// ResetSchedule removes the override and restores the default schedule.
func (r *Registry) ResetSchedule(source, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return fmt.Errorf("%w: %s:%s", ErrJobNotFound, source, name)
	}
	if job.schedule != job.defaultSchedule {
		if err := r.reschedule(job, job.defaultSchedule); err != nil {
			return err
		}
	}

	if r.queries != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.queries.DeleteSchedulerOverride(ctx, source, name); err != nil {
			r.logger.Error("failed to remove schedule override", "error", err, "source", source, "name", name)
		}
	}

	r.logger.Info("reset job schedule to default", "source", source, "name", name, "schedule", job.defaultSchedule)
	return nil
}

// reschedule swaps the cron entry of job. The caller holds r.mu.
func (r *Registry) reschedule(job *registeredJob, schedule string) error {
	if job.cronInstance == nil || job.job == nil {
		return fmt.Errorf("job cannot be rescheduled: %s:%s", job.source, job.name)
	}

	job.cronInstance.Remove(job.entryID)
	newEntryID, err := job.cronInstance.AddJob(schedule, job.job)
	if err != nil {
		fallbackID, fallbackErr := job.cronInstance.AddJob(job.schedule, job.job)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}

	job.entryID = newEntryID
	job.schedule = schedule
	return nil
}
