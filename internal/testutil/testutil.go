// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the wellness site.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/backend/local"
	"github.com/olegiv/wellness-site/internal/store"
)

// Test account defaults.
const (
	TestPassword  = "correct-horse-battery"
	TestJWTSecret = "test-secret-key-that-is-long-enough-for-hs256"
	AdminEmail    = "admin@example.com"
	UserEmail     = "user@example.com"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary migrated database, closed when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "wellness-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Backend is an embedded persistence service over a temporary database
// and storage directory.
type Backend struct {
	Service    *local.Service
	DB         *sql.DB
	StorageDir string
	Clock      *Clock
}

// BackendOption adjusts the service options used by TestBackend.
type BackendOption func(*local.Options)

// WithAutoConfirm makes sign-up sign the new account in.
func WithAutoConfirm() BackendOption {
	return func(o *local.Options) { o.AutoConfirm = true }
}

// WithMaxObjectSize caps stored objects at n bytes.
func WithMaxObjectSize(n int64) BackendOption {
	return func(o *local.Options) { o.MaxObjectSize = n }
}

// TestBackend starts an embedded persistence service for one test.
func TestBackend(t *testing.T, opts ...BackendOption) *Backend {
	t.Helper()

	db := TestDB(t)
	clock := NewClock(time.Now().UTC())
	dir := filepath.Join(t.TempDir(), "storage")

	o := local.Options{
		JWTSecret:     TestJWTSecret,
		StorageDir:    dir,
		PublicBaseURL: "http://localhost:8080",
		Buckets:       []string{backend.BucketVideos},
		Now:           clock.Now,
		Logger:        TestLoggerSilent(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	svc, err := local.New(db, o)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return &Backend{Service: svc, DB: db, StorageDir: dir, Clock: clock}
}

// CreateAdmin registers a confirmed admin account.
func (b *Backend) CreateAdmin(t *testing.T, email string) {
	t.Helper()
	if _, err := b.Service.CreateUser(context.Background(), email, TestPassword, "admin", true); err != nil {
		t.Fatalf("creating admin %s: %v", email, err)
	}
}

// CreateUser registers a confirmed non-admin account.
func (b *Backend) CreateUser(t *testing.T, email string) {
	t.Helper()
	if _, err := b.Service.CreateUser(context.Background(), email, TestPassword, "user", true); err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
}

// Client returns a client with in-memory credentials.
func (b *Backend) Client() *local.Client {
	return b.Service.NewClient(nil)
}

// SignedInClient returns a client signed in as email.
func (b *Backend) SignedInClient(t *testing.T, email string) *local.Client {
	t.Helper()
	c := b.Client()
	if _, err := c.SignIn(context.Background(), email, TestPassword); err != nil {
		t.Fatalf("signing in %s: %v", email, err)
	}
	return c
}

// AdminClient creates the default admin account and signs it in.
func (b *Backend) AdminClient(t *testing.T) *local.Client {
	t.Helper()
	b.CreateAdmin(t, AdminEmail)
	return b.SignedInClient(t, AdminEmail)
}

// WriteObject places a file directly in a bucket, bypassing authorization.
func (b *Backend) WriteObject(t *testing.T, bucket, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(b.StorageDir, bucket, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("creating object dir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("writing object: %v", err)
	}
	return p
}

// ObjectExists reports whether an object file is present in a bucket.
func (b *Backend) ObjectExists(t *testing.T, bucket, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(b.StorageDir, bucket, filepath.FromSlash(name)))
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("stat object: %v", err)
	}
	return false
}
