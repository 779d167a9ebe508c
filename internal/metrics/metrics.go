// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics collects Prometheus counters for content operations,
// storage cleanup, authentication and logging.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder interfaces used across the site.
type Collector struct {
	contentOps      *prometheus.CounterVec
	contentLatency  *prometheus.HistogramVec
	cleanupFailures *prometheus.CounterVec
	orphansRemoved  prometheus.Counter
	authEvents      *prometheus.CounterVec
	logRecords      *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellness_content_operations_total",
			Help: "Content manager operations by entity, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		contentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wellness_content_operation_seconds",
			Help:    "Latency of content manager operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
		cleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellness_storage_cleanup_failures_total",
			Help: "Best-effort storage deletions that failed.",
		}, []string{"bucket"}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellness_storage_orphans_removed_total",
			Help: "Stored objects removed because no video referenced them.",
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellness_auth_events_total",
			Help: "Authentication outcomes.",
		}, []string{"event"}),
		logRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellness_log_records_total",
			Help: "Warning and error log records by level and category.",
		}, []string{"level", "category"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellness_scheduler_job_runs_total",
			Help: "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(
		c.contentOps,
		c.contentLatency,
		c.cleanupFailures,
		c.orphansRemoved,
		c.authEvents,
		c.logRecords,
		c.jobRuns,
	)
	return c
}

// RecordContentOp records one content manager operation.
func (c *Collector) RecordContentOp(entity, op string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.contentOps.WithLabelValues(entity, op, outcome).Inc()
	c.contentLatency.WithLabelValues(entity, op).Observe(d.Seconds())
}

// RecordCleanupFailure records a failed best-effort storage deletion.
func (c *Collector) RecordCleanupFailure(bucket string) {
	c.cleanupFailures.WithLabelValues(bucket).Inc()
}

// RecordOrphansRemoved records objects deleted by the orphan sweep.
func (c *Collector) RecordOrphansRemoved(n int) {
	c.orphansRemoved.Add(float64(n))
}

// RecordAuthEvent records an authentication outcome.
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordLog records a log record.
func (c *Collector) RecordLog(level, category string) {
	c.logRecords.WithLabelValues(level, category).Inc()
}

// RecordJobRun records a scheduled job run.
func (c *Collector) RecordJobRun(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.jobRuns.WithLabelValues(job, outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
