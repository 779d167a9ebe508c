// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordContentOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordContentOp("video", "create", time.Millisecond, nil)
	c.RecordContentOp("video", "create", time.Millisecond, errors.New("boom"))
	c.RecordContentOp("video", "create", time.Millisecond, nil)

	if got := promtest.ToFloat64(c.contentOps.WithLabelValues("video", "create", "success")); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := promtest.ToFloat64(c.contentOps.WithLabelValues("video", "create", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestCleanupAndOrphans(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordCleanupFailure("videos")
	c.RecordOrphansRemoved(3)
	c.RecordOrphansRemoved(0)

	if got := promtest.ToFloat64(c.cleanupFailures.WithLabelValues("videos")); got != 1 {
		t.Errorf("cleanup failures = %v, want 1", got)
	}
	if got := promtest.ToFloat64(c.orphansRemoved); got != 3 {
		t.Errorf("orphans removed = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthEvent("sign_in")
	c.RecordLog("WARN", "storage")
	c.RecordJobRun("orphan_sweep", nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`wellness_auth_events_total{event="sign_in"} 1`,
		`wellness_log_records_total{category="storage",level="WARN"} 1`,
		`wellness_scheduler_job_runs_total{job="orphan_sweep",outcome="success"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
