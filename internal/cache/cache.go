// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides a small key/value store with expiry, backed by
// process memory or Redis.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-valued store with per-key TTL. Implementations are safe
// for concurrent use.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl means the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Error is a sentinel cache error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)

// Config selects and tunes a cache implementation.
type Config struct {
	// RedisURL selects Redis when set, e.g. redis://localhost:6379/0.
	RedisURL string
	// Prefix is prepended to every Redis key.
	Prefix     string
	DefaultTTL time.Duration
	// CleanupInterval controls expired-entry sweeps of the memory cache.
	CleanupInterval time.Duration
}

// New returns a Redis cache when cfg.RedisURL is set and a memory cache
// otherwise.
func New(cfg Config) (Cache, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.RedisURL != "" {
		return NewRedis(RedisOptions{URL: cfg.RedisURL, Prefix: cfg.Prefix, DefaultTTL: cfg.DefaultTTL})
	}
	return NewMemory(MemoryOptions{DefaultTTL: cfg.DefaultTTL, CleanupInterval: cfg.CleanupInterval}), nil
}
