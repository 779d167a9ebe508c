// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Typed stores JSON-encoded values of type T in a Cache.
type Typed[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewTyped wraps c. A zero ttl uses the cache default.
func NewTyped[T any](c Cache, ttl time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, ttl: ttl}
}

// Get decodes the value at key. A miss returns nil, false, nil.
func (t *Typed[T]) Get(ctx context.Context, key string) (*T, bool, error) {
	data, err := t.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

// Set encodes and stores v.
func (t *Typed[T]) Set(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.cache.Set(ctx, key, data, t.ttl)
}

// Delete removes key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.cache.Delete(ctx, key)
}
