// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the scheduler instruments:
//   - ocms.scheduler.publishes (Int64Counter): scheduled publish attempts by outcome
//   - ocms.scheduler.sweep.duration (Float64Histogram): sweep time in seconds
type metrics struct {
	publishes metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics(meter metric.Meter) *metrics {
	// On error the API hands back noop instruments.
	publishes, _ := meter.Int64Counter(
		"ocms.scheduler.publishes",
		metric.WithDescription("Scheduled publish attempts by outcome"),
		metric.WithUnit("{page}"),
	)
	duration, _ := meter.Float64Histogram(
		"ocms.scheduler.sweep.duration",
		metric.WithDescription("Duration of a scheduled publish sweep in seconds"),
		metric.WithUnit("s"),
	)
	return &metrics{publishes: publishes, duration: duration}
}

func (m *metrics) record(ctx context.Context, o outcome) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
}

func (m *metrics) sweepDone(ctx context.Context, d time.Duration) {
	m.duration.Record(ctx, d.Seconds())
}
