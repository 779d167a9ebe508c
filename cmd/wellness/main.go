// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/wellness-site/internal/config"
	"github.com/olegiv/wellness-site/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	envFile := flag.String("env-file", ".env", "Load environment variables from this file if it exists")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "wellness - wellness site and content API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_SESSION_SECRET   Session cookie key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_JWT_SECRET       Access token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_DB_PATH          SQLite database path (default: ./data/wellness.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_STORAGE_DIR      Video storage directory (default: ./data/storage)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_ENV              development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_REDIS_URL        Keep the backend session in Redis (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  WELLNESS_ADMIN_EMAIL      Seed admin account (optional, with WELLNESS_ADMIN_PASSWORD)\n")
	}
	flag.Parse()

	info := version.New(appVersion, appGitCommit, appBuildTime)
	if *showVersion {
		_, _ = fmt.Printf("wellness %s\n", info)
		os.Exit(0)
	}

	if err := run(*envFile, info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(envFile string, info version.Info) error {
	// A missing .env file is normal outside development.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout, info)
	if err != nil {
		return err
	}
	defer a.Close()

	a.scheduler.Start()
	defer a.scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           a.routes(),
		ReadTimeout:       5 * time.Minute, // video uploads
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr, "version", info.Version, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
