// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/wellness-site/internal/scheduler"
)

// JobRunner lists and triggers maintenance jobs.
type JobRunner interface {
	List() []scheduler.JobInfo
	Trigger(ctx context.Context, name string) error
}

// JobsHandler exposes the scheduler to admins.
type JobsHandler struct {
	runner JobRunner
	logger *slog.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(runner JobRunner, logger *slog.Logger) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{runner: runner, logger: logger.With("category", "system")}
}

// List handles GET /api/admin/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.runner.List())
}

// Run handles POST /api/admin/jobs/{name}/run. The job runs to completion
// before the response is written.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.runner.Trigger(r.Context(), name)
	switch {
	case err == nil:
		h.logger.Info("job triggered by admin", "job", name)
		writeData(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeErrorMessage(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, scheduler.ErrJobRunning):
		writeErrorMessage(w, http.StatusConflict, "Job is already running")
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "Job failed: "+err.Error())
	}
}
