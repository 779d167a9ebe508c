// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/backend/local"
	"github.com/olegiv/wellness-site/internal/cache"
	"github.com/olegiv/wellness-site/internal/config"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/credentials"
	"github.com/olegiv/wellness-site/internal/logging"
	"github.com/olegiv/wellness-site/internal/media"
	"github.com/olegiv/wellness-site/internal/metrics"
	"github.com/olegiv/wellness-site/internal/middleware"
	"github.com/olegiv/wellness-site/internal/scheduler"
	"github.com/olegiv/wellness-site/internal/session"
	"github.com/olegiv/wellness-site/internal/store"
	"github.com/olegiv/wellness-site/internal/version"
)

// app holds the long-lived services of the server.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	version version.Info

	db       *sql.DB
	registry *prometheus.Registry
	metrics  *metrics.Collector
	cache    cache.Cache

	service *local.Service
	client  *local.Client
	auth    *auth.Manager

	settings     *content.SiteSettings
	products     *content.Products
	testimonials *content.Testimonials
	videos       *content.VideoManager

	sessions        *scs.SessionManager
	loginProtection *middleware.LoginProtection
	scheduler       *scheduler.Scheduler

	closeOnce sync.Once
}

// newApp opens the database, restores the backend session and loads every
// content cache. Content load failures are logged, not fatal.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, info version.Info) (_ *app, err error) {
	a := &app{cfg: cfg, version: info}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewCollector(a.registry)

	a.logger = logging.New(logOut, cfg.LogLevel, a.metrics)
	slog.SetDefault(a.logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	a.logger.Info("initializing database", "path", cfg.DBPath)
	a.db, err = store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := store.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	a.service, err = local.New(a.db, local.Options{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		AutoConfirm:     cfg.AutoConfirm,
		StorageDir:      cfg.StorageDir,
		PublicBaseURL:   cfg.BaseURL(),
		Buckets:         []string{backend.BucketVideos},
		MaxObjectSize:   media.MaxVideoSize,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("starting persistence service: %w", err)
	}

	if cfg.SeedAdmin() {
		created, err := a.service.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("seeding admin account: %w", err)
		}
		a.logger.Info("seed admin ready", "category", logging.CategoryAuth, "email", cfg.AdminEmail, "created", created)
	}

	creds, err := a.credentialStore()
	if err != nil {
		return nil, err
	}
	a.client = a.service.NewClient(creds)

	a.auth = auth.NewManager(a.client, a.logger, auth.WithRecorder(a.metrics))
	a.auth.Initialize(ctx)
	if u := a.auth.User(); u != nil {
		a.logger.Info("restored backend session", "category", logging.CategoryAuth, "user_id", u.ID, "is_admin", a.auth.IsAdmin())
	}

	opts := content.Options{Logger: a.logger, Recorder: a.metrics}
	a.settings = content.NewSiteSettings(a.client, opts)
	a.products = content.NewProducts(a.client, opts)
	a.testimonials = content.NewTestimonials(a.client, opts)
	a.videos = content.NewVideoManager(a.client, a.client, opts)
	for name, r := range a.refreshers() {
		if err := r.Refresh(ctx); err != nil {
			a.logger.Warn("initial content load failed", "category", logging.CategoryContent, "cache", name, "error", err)
		}
	}

	a.sessions = session.New(a.db, cfg.IsDevelopment())
	a.loginProtection = middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	a.scheduler = scheduler.New(a.logger, scheduler.WithRecorder(a.metrics))
	if err := a.addJobs(); err != nil {
		return nil, err
	}
	return a, nil
}

// credentialStore keeps the backend session in Redis when configured and
// in a local file otherwise.
func (a *app) credentialStore() (backend.CredentialStore, error) {
	kind := a.cfg.CredentialStore()
	if kind == config.CredentialsFile {
		if err := os.MkdirAll(filepath.Dir(a.cfg.CredentialsFile), 0o700); err != nil {
			return nil, fmt.Errorf("creating credentials directory: %w", err)
		}
		return credentials.NewFileStore(a.cfg.CredentialsFile), nil
	}

	// Without a Redis URL this is a memory cache; the session then ends
	// with the process.
	c, err := cache.New(cache.Config{
		RedisURL:        a.cfg.RedisURL,
		Prefix:          a.cfg.CachePrefix,
		DefaultTTL:      a.cfg.RefreshTokenTTL,
		CleanupInterval: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.cache = c
	a.logger.Info("backend session credential store", "category", logging.CategoryConfig, "store", kind)
	return credentials.NewCacheStore(c, a.cfg.RefreshTokenTTL), nil
}

func (a *app) refreshers() map[string]scheduler.Refresher {
	return map[string]scheduler.Refresher{
		"site_info":    a.settings,
		"products":     a.products,
		"testimonials": a.testimonials,
		"videos":       a.videos,
	}
}

func (a *app) addJobs() error {
	cfg := a.cfg
	jobs := []scheduler.Job{
		scheduler.RefreshContentJob(config.JobSchedule(cfg.ContentRefreshSchedule),
			a.settings, a.products, a.testimonials, a.videos),
		scheduler.RefreshSessionJob(config.JobSchedule(cfg.SessionRefreshSchedule), a.auth),
		scheduler.SweepOrphansJob(config.JobSchedule(cfg.SweepSchedule), a.videos, cfg.OrphanMinAge, a.logger),
		scheduler.PurgeSessionsJob(config.JobSchedule(cfg.PurgeSchedule), a.service, a.logger),
	}
	for _, j := range jobs {
		if err := a.scheduler.Add(j); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.Name, err)
		}
	}
	return nil
}

// Close releases everything newApp opened. It does not stop the scheduler.
func (a *app) Close() {
	a.closeOnce.Do(a.close)
}

func (a *app) close() {
	if a.loginProtection != nil {
		a.loginProtection.Close()
	}
	if a.auth != nil {
		a.auth.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("error closing cache", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}
}
