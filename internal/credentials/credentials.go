// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package credentials persists the server's backend session so it
// survives restarts.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/cache"
)

// FileStore keeps credentials in a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns nil, nil when the file does not exist.
func (s *FileStore) Load(_ context.Context) (*backend.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var c backend.Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &c, nil
}

// Save writes c atomically with mode 0600.
func (s *FileStore) Save(_ context.Context, c backend.Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating credentials file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear deletes the file. A missing file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// CacheKey is the cache key credentials are stored under.
const CacheKey = "auth:credentials"

// CacheStore keeps credentials in a cache, typically Redis, so several
// server instances share one backend session.
type CacheStore struct {
	typed *cache.Typed[backend.Credentials]
}

// NewCacheStore returns a store over c. Entries expire after ttl; use the
// refresh-token lifetime.
func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{typed: cache.NewTyped[backend.Credentials](c, ttl)}
}

// Load returns nil, nil on a miss.
func (s *CacheStore) Load(ctx context.Context) (*backend.Credentials, error) {
	c, ok, err := s.typed.Get(ctx, CacheKey)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return c, nil
}

// Save stores c.
func (s *CacheStore) Save(ctx context.Context, c backend.Credentials) error {
	return s.typed.Set(ctx, CacheKey, c)
}

// Clear removes the stored credentials.
func (s *CacheStore) Clear(ctx context.Context) error {
	return s.typed.Delete(ctx, CacheKey)
}

var (
	_ backend.CredentialStore = (*FileStore)(nil)
	_ backend.CredentialStore = (*CacheStore)(nil)
)
