// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/version"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	storage   backend.Storage
	auth      interface{ State() auth.State }
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sql.DB, storage backend.Storage, state interface{ State() auth.State }, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:        db,
		storage:   storage,
		auth:      state,
		version:   info,
		startTime: time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"storage":  h.checkStorage(r.Context()),
		"auth":     h.checkAuth(),
	}

	overall := "healthy"
	for _, c := range checks {
		if c.Status == "unhealthy" {
			overall = "unhealthy"
			break
		}
		if c.Status != "healthy" {
			overall = "degraded"
		}
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks:    checks,
	})
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if c := h.checkDatabase(r.Context()); c.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": c.Message})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return Check{Status: "unhealthy", Message: "database ping failed"}
	}
	return Check{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkStorage(ctx context.Context) Check {
	if h.storage == nil {
		return Check{Status: "degraded", Message: "storage not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if _, err := h.storage.List(ctx, backend.BucketVideos, ""); err != nil {
		return Check{Status: "degraded", Message: "videos bucket unavailable"}
	}
	return Check{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkAuth() Check {
	st := h.auth.State()
	switch {
	case st.Loading:
		return Check{Status: "degraded", Message: "session restore in progress"}
	case st.User == nil:
		return Check{Status: "healthy", Message: "signed out"}
	default:
		return Check{Status: "healthy", Message: "signed in"}
	}
}
