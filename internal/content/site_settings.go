// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/model"
)

const settingsEntity = "site_setting"

// SettingsSnapshot is a consistent view of the settings cache.
type SettingsSnapshot struct {
	Values  map[string]string `json:"values"`
	Loading bool              `json:"loading"`
	Saving  bool              `json:"saving"`
	Err     error             `json:"-"`
}

// SiteSettings caches the editable site copy as a key/value map. Entries
// are upserted through a remote procedure and never deleted.
type SiteSettings struct {
	db     backend.Database
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	values  map[string]string
	loading bool
	saving  int
	err     error
}

// NewSiteSettings creates the site settings manager.
func NewSiteSettings(db backend.Database, opts Options) *SiteSettings {
	opts = opts.withDefaults()
	return &SiteSettings{
		db:     db,
		opts:   opts,
		logger: opts.Logger.With("category", "content", "entity", settingsEntity),
		values: make(map[string]string),
	}
}

// Refresh reloads all settings.
func (s *SiteSettings) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	start := s.opts.Now()
	rows, err := s.db.Query(ctx, backend.TableSiteInfo, backend.Query{})
	s.observe("list", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = remote(settingsEntity, "list", err)
		s.logger.Warn("failed to load site settings", "error", err)
		return s.err
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.String("key")] = r.String("value")
	}
	s.values = values
	s.err = nil
	return nil
}

// Set upserts one setting and updates the cache once the service accepts it.
func (s *SiteSettings) Set(ctx context.Context, key, value string) error {
	if err := model.ValidateSettingKey(key); err != nil {
		return err
	}
	value = model.NormalizeSettingValue(value)

	s.mu.Lock()
	s.saving++
	s.mu.Unlock()

	start := s.opts.Now()
	_, err := s.db.RPC(ctx, backend.ProcUpdateSiteInfo, map[string]any{
		"info_key":   key,
		"info_value": value,
	})
	s.observe("update", start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving--
	if err != nil {
		s.err = remote(settingsEntity, "update", err)
		s.logger.Warn("failed to save site setting", "key", key, "error", err)
		return s.err
	}
	s.values[key] = value
	s.err = nil
	return nil
}

// SetMany saves values one key at a time in key order and stops at the
// first failure. Keys saved before the failure stay saved.
func (s *SiteSettings) SetMany(ctx context.Context, values map[string]string) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := s.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value for key, or def when the key is unset or empty.
func (s *SiteSettings) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// All returns a copy of every stored setting.
func (s *SiteSettings) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// WithDefaults returns stored settings layered over model.DefaultSettings.
func (s *SiteSettings) WithDefaults() map[string]string {
	out := model.DefaultSettings()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Snapshot returns the cache with its loading and saving flags.
func (s *SiteSettings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{
		Values:  maps.Clone(s.values),
		Loading: s.loading,
		Saving:  s.saving > 0,
		Err:     s.err,
	}
}

func (s *SiteSettings) observe(op string, start time.Time, err error) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordContentOp(settingsEntity, op, s.opts.Now().Sub(start), err)
	}
}
