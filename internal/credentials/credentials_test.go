// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package credentials_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/cache"
	"github.com/olegiv/wellness-site/internal/credentials"
	"github.com/olegiv/wellness-site/internal/testutil"
)

func sample() backend.Credentials {
	return backend.Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "credentials.json")
	s := credentials.NewFileStore(path)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, sample()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, sample().ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := credentials.NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestCacheStore(t *testing.T) {
	c := cache.NewMemory(cache.MemoryOptions{})
	t.Cleanup(func() { _ = c.Close() })
	s := credentials.NewCacheStore(c, time.Hour)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, sample()))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access", got.AccessToken)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// A second client restores the session persisted by the first.
func TestSessionSurvivesRestart(t *testing.T) {
	b := testutil.TestBackend(t)
	b.CreateAdmin(t, testutil.AdminEmail)
	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	ctx := context.Background()

	first := b.Service.NewClient(store)
	_, err := first.SignIn(ctx, testutil.AdminEmail, testutil.TestPassword)
	require.NoError(t, err)

	second := b.Service.NewClient(store)
	sess, err := second.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, testutil.AdminEmail, sess.User.Email)

	require.NoError(t, second.SignOut(ctx))
	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, saved)
}
