// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content keeps local caches of site content in step with the
// persistence service. The cache only changes after the service has
// confirmed a mutation.
package content

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/model"
)

// Record is a content row with an identifier.
type Record interface {
	RecordID() string
}

// Input is a create or patch payload that can clean and check itself.
type Input[S any] interface {
	Normalize() S
	Validate() error
}

// Recorder counts content operations.
type Recorder interface {
	RecordContentOp(entity, op string, d time.Duration, err error)
	RecordCleanupFailure(bucket string)
	RecordOrphansRemoved(n int)
}

// Options holds what every manager needs besides its table.
type Options struct {
	Logger   *slog.Logger
	Recorder Recorder
	Now      func() time.Time
	// MaxUploadSize caps the bytes read from a video upload. Zero means
	// media.MaxVideoSize.
	MaxUploadSize int64
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Snapshot is a consistent view of a manager's cache.
type Snapshot[T any] struct {
	Items   []T   `json:"items"`
	Loading bool  `json:"loading"`
	Saving  bool  `json:"saving"`
	Err     error `json:"-"`
}

// Manager caches one table's rows, newest first.
type Manager[T Record, C Input[C], P Input[P]] struct {
	db     backend.Database
	table  string
	entity string
	order  *backend.Order
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	items   []T
	loading bool
	saving  int
	err     error
}

// NewManager creates a Manager for table. entity names records in logs
// and metrics.
func NewManager[T Record, C Input[C], P Input[P]](db backend.Database, table, entity string, opts Options) *Manager[T, C, P] {
	opts = opts.withDefaults()
	return &Manager[T, C, P]{
		db:     db,
		table:  table,
		entity: entity,
		order:  backend.NewestFirst,
		opts:   opts,
		logger: opts.Logger.With("category", "content", "entity", entity),
	}
}

// Products manages the product showcase.
type Products = Manager[model.Product, model.ProductInput, model.ProductPatch]

// Testimonials manages customer quotes.
type Testimonials = Manager[model.Testimonial, model.TestimonialInput, model.TestimonialPatch]

// NewProducts creates the product manager.
func NewProducts(db backend.Database, opts Options) *Products {
	return NewManager[model.Product, model.ProductInput, model.ProductPatch](db, backend.TableProducts, "product", opts)
}

// NewTestimonials creates the testimonial manager.
func NewTestimonials(db backend.Database, opts Options) *Testimonials {
	return NewManager[model.Testimonial, model.TestimonialInput, model.TestimonialPatch](db, backend.TableTestimonials, "testimonial", opts)
}

// Refresh reloads every row. Calling it again simply reloads.
func (m *Manager[T, C, P]) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	start := m.opts.Now()
	items, err := m.fetch(ctx, backend.Query{Order: m.order})
	m.observe("list", start, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if err != nil {
		m.err = err
		m.logger.Warn("failed to load content", "error", err)
		return err
	}
	m.items = items
	m.err = nil
	return nil
}

// Create validates in, inserts it and puts the stored record first.
func (m *Manager[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	var zero T
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return zero, err
	}
	row, err := backend.Encode(in)
	if err != nil {
		return zero, err
	}
	return m.insertRow(ctx, row)
}

// insertRow inserts an already validated row.
func (m *Manager[T, C, P]) insertRow(ctx context.Context, row backend.Row) (T, error) {
	var zero T
	m.beginSave()
	start := m.opts.Now()
	stored, err := m.db.Insert(ctx, m.table, row)
	m.endSave()
	m.observe("create", start, err)
	if err != nil {
		return zero, m.fail("create", err)
	}

	rec, err := backend.Decode[T](stored)
	if err != nil {
		return zero, err
	}

	m.mu.Lock()
	m.items = append([]T{rec}, m.items...)
	m.err = nil
	m.mu.Unlock()
	return rec, nil
}

// Update sends the changed fields and replaces the cached record in place
// with the stored one.
func (m *Manager[T, C, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var zero T
	patch = patch.Normalize()
	if err := patch.Validate(); err != nil {
		return zero, err
	}
	row, err := backend.Encode(patch)
	if err != nil {
		return zero, err
	}
	if len(row) == 0 {
		return zero, model.NewValidationError("", "Nothing to update")
	}
	return m.updateRow(ctx, id, row)
}

// updateRow stamps updated_at on an already validated patch and applies it.
func (m *Manager[T, C, P]) updateRow(ctx context.Context, id string, row backend.Row) (T, error) {
	var zero T
	row["updated_at"] = m.opts.Now().UTC()

	m.beginSave()
	start := m.opts.Now()
	stored, err := m.db.Update(ctx, m.table, id, row)
	m.endSave()
	m.observe("update", start, err)
	if err != nil {
		return zero, m.fail("update", err)
	}

	rec, err := backend.Decode[T](stored)
	if err != nil {
		return zero, err
	}

	m.mu.Lock()
	if i := m.indexLocked(id); i >= 0 {
		m.items[i] = rec
	}
	m.err = nil
	m.mu.Unlock()
	return rec, nil
}

// Delete removes the row, then drops it from the cache.
func (m *Manager[T, C, P]) Delete(ctx context.Context, id string) error {
	m.beginSave()
	start := m.opts.Now()
	err := m.db.Delete(ctx, m.table, id)
	m.endSave()
	m.observe("delete", start, err)
	if err != nil {
		return m.fail("delete", err)
	}

	m.mu.Lock()
	if i := m.indexLocked(id); i >= 0 {
		m.items = slices.Delete(m.items, i, i+1)
	}
	m.err = nil
	m.mu.Unlock()
	return nil
}

// Fetch reads one record straight from the service, bypassing the cache.
func (m *Manager[T, C, P]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := m.fetch(ctx, backend.Query{Filter: map[string]string{"id": id}})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, remote(m.entity, "fetch", backend.Errorf(backend.CodeNotFound, "%s %s not found", m.entity, id))
	}
	return items[0], nil
}

// List returns a copy of the cached records.
func (m *Manager[T, C, P]) List() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

// Get returns the cached record with id.
func (m *Manager[T, C, P]) Get(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.items[i], true
	}
	var zero T
	return zero, false
}

// Snapshot returns the cache with its loading and saving flags.
func (m *Manager[T, C, P]) Snapshot() Snapshot[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot[T]{
		Items:   slices.Clone(m.items),
		Loading: m.loading,
		Saving:  m.saving > 0,
		Err:     m.err,
	}
}

func (m *Manager[T, C, P]) fetch(ctx context.Context, q backend.Query) ([]T, error) {
	rows, err := m.db.Query(ctx, m.table, q)
	if err != nil {
		return nil, remote(m.entity, "list", err)
	}
	return backend.DecodeAll[T](rows)
}

func (m *Manager[T, C, P]) indexLocked(id string) int {
	return slices.IndexFunc(m.items, func(r T) bool { return r.RecordID() == id })
}

func (m *Manager[T, C, P]) beginSave() {
	m.mu.Lock()
	m.saving++
	m.mu.Unlock()
}

func (m *Manager[T, C, P]) endSave() {
	m.mu.Lock()
	m.saving--
	m.mu.Unlock()
}

// fail records err as the manager's last error and wraps it.
func (m *Manager[T, C, P]) fail(op string, err error) error {
	rerr := remote(m.entity, op, err)
	m.mu.Lock()
	m.err = rerr
	m.mu.Unlock()
	m.logger.Warn("content operation rejected", "operation", op, "error", err)
	return rerr
}

func (m *Manager[T, C, P]) observe(op string, start time.Time, err error) {
	if m.opts.Recorder != nil {
		m.opts.Recorder.RecordContentOp(m.entity, op, m.opts.Now().Sub(start), err)
	}
}
