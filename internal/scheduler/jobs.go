// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
)

// Job names.
const (
	JobRefreshContent = "refresh-content"
	JobRefreshSession = "refresh-session"
	JobSweepOrphans   = "sweep-orphans"
	JobPurgeSessions  = "purge-sessions"
)

// Refresher reloads a cache from the persistence service.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// SessionRefresher renews the server's signed-in session.
type SessionRefresher interface {
	Refresh(ctx context.Context) error
	User() *backend.User
}

// OrphanSweeper removes stored videos no row points at.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context, minAge time.Duration) (int, error)
}

// SessionPurger deletes expired and revoked auth sessions.
type SessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

// RefreshContentJob reloads every content cache. All refreshers run even
// when one fails.
func RefreshContentJob(schedule string, refreshers ...Refresher) Job {
	return Job{
		Name:        JobRefreshContent,
		Description: "Reload site settings, products, testimonials and videos",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			var errs []error
			for _, r := range refreshers {
				errs = append(errs, r.Refresh(ctx))
			}
			return errors.Join(errs...)
		},
	}
}

// RefreshSessionJob renews the access token while someone is signed in.
func RefreshSessionJob(schedule string, s SessionRefresher) Job {
	return Job{
		Name:        JobRefreshSession,
		Description: "Renew the signed-in session before its access token expires",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			if s.User() == nil {
				return nil
			}
			return s.Refresh(ctx)
		},
	}
}

// SweepOrphansJob removes stored videos older than minAge that no video
// row references.
func SweepOrphansJob(schedule string, s OrphanSweeper, minAge time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:        JobSweepOrphans,
		Description: "Remove stored video files no video points at",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			n, err := s.SweepOrphans(ctx, minAge)
			if err != nil {
				return fmt.Errorf("sweeping orphaned videos: %w", err)
			}
			if n > 0 && logger != nil {
				logger.Info("removed orphaned videos", "category", "storage", "count", n)
			}
			return nil
		},
	}
}

// PurgeSessionsJob deletes stale auth sessions.
func PurgeSessionsJob(schedule string, p SessionPurger, logger *slog.Logger) Job {
	return Job{
		Name:        JobPurgeSessions,
		Description: "Delete expired and revoked auth sessions",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			n, err := p.PurgeSessions(ctx)
			if err != nil {
				return fmt.Errorf("purging sessions: %w", err)
			}
			if n > 0 && logger != nil {
				logger.Info("purged auth sessions", "category", "auth", "count", n)
			}
			return nil
		},
	}
}
