// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wellness-site/internal/version"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WELLNESS_DB_PATH", filepath.Join(dir, "wellness.db"))
	t.Setenv("WELLNESS_STORAGE_DIR", filepath.Join(dir, "storage"))
	t.Setenv("WELLNESS_SESSION_SECRET", "k7Qp2vX9mR4tW8zB1nC6yH3jL5sD0fGa")
	t.Setenv("WELLNESS_JWT_SECRET", "Z3xV8bN1mQ6wE4rT9yU2iO7pA5sD0fGh")
	t.Setenv("WELLNESS_LOG_LEVEL", "error")
	return filepath.Join(dir, "missing.env")
}

// run executes wellnessctl with args and returns its output.
func run(t *testing.T, envFile, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(version.New("v1.2.3", "abc123", ""))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", envFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "unused.env", "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestMigrateCommand(t *testing.T) {
	envFile := setupEnv(t)
	out, err := run(t, envFile, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "database is up to date")

	_, err = run(t, envFile, "", "migrate")
	require.NoError(t, err)
}

func TestMigrateRequiresSecrets(t *testing.T) {
	envFile := setupEnv(t)
	t.Setenv("WELLNESS_JWT_SECRET", "")
	_, err := run(t, envFile, "", "migrate")
	require.Error(t, err)
}

func TestUserLifecycle(t *testing.T) {
	envFile := setupEnv(t)

	out, err := run(t, envFile, "", "users", "create", "Editor@Example.com", "--password", "correct-horse-battery")
	require.NoError(t, err)
	assert.Contains(t, out, "created editor@example.com (user)")

	_, err = run(t, envFile, "", "users", "create", "editor@example.com", "--password", "correct-horse-battery")
	require.Error(t, err, "duplicate account")

	out, err = run(t, envFile, "", "users", "grant-admin", "editor@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "granted admin")

	out, err = run(t, envFile, "", "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "editor@example.com")
	assert.Contains(t, out, "admin")

	_, err = run(t, envFile, "", "users", "revoke-admin", "editor@example.com")
	require.NoError(t, err)
	out, err = run(t, envFile, "", "users", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "admin ")

	out, err = run(t, envFile, "", "users", "revoke-sessions", "editor@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked 0 session(s)")

	out, err = run(t, envFile, "", "sessions", "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 session(s)")
}

func TestCreateUserReadsPasswordFromStdin(t *testing.T) {
	envFile := setupEnv(t)

	out, err := run(t, envFile, "correct-horse-battery\n", "users", "create", "admin@example.com", "--admin", "--unconfirmed")
	require.NoError(t, err)
	assert.Contains(t, out, "(admin)")

	out, err = run(t, envFile, "", "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no")

	_, err = run(t, envFile, "", "users", "confirm", "admin@example.com")
	require.NoError(t, err)
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	envFile := setupEnv(t)
	_, err := run(t, envFile, "", "users", "create", "a@example.com", "--password", "short")
	require.Error(t, err)

	_, err = run(t, envFile, "", "users", "create", "a@example.com")
	require.EqualError(t, err, "password is required")
}

func TestUnknownAccount(t *testing.T) {
	envFile := setupEnv(t)
	_, err := run(t, envFile, "", "users", "confirm", "nobody@example.com")
	require.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	envFile := setupEnv(t)
	_, err := run(t, envFile, "", "users", "create", "admin@example.com", "--admin", "--password", "correct-horse-battery")
	require.NoError(t, err)

	dir := filepath.Join(os.Getenv("WELLNESS_STORAGE_DIR"), "videos")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	old := filepath.Join(dir, "1700000000000-old.mp4")
	fresh := filepath.Join(dir, "1700000000001-fresh.mp4")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	out, err := run(t, envFile, "correct-horse-battery\n", "sweep", "--email", "admin@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 orphaned file(s)")
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestSweepRequiresAdmin(t *testing.T) {
	envFile := setupEnv(t)
	_, err := run(t, envFile, "", "users", "create", "user@example.com", "--password", "correct-horse-battery")
	require.NoError(t, err)

	_, err = run(t, envFile, "", "sweep", "--email", "user@example.com", "--password", "correct-horse-battery")
	require.Error(t, err)

	_, err = run(t, envFile, "", "sweep")
	require.EqualError(t, err, "an admin email is required")
}
