// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/media"
	"github.com/olegiv/wellness-site/internal/testutil"
)

// recordingStorage counts storage calls and can fail them on demand.
type recordingStorage struct {
	backend.Storage

	mu        sync.Mutex
	uploads   []string
	removes   []string
	lists     int
	uploadErr error
	removeErr error
	listErr   error
}

func (s *recordingStorage) Upload(ctx context.Context, bucket, path string, body io.Reader, ct string) (string, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, path)
	err := s.uploadErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Storage.Upload(ctx, bucket, path, body, ct)
}

func (s *recordingStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	s.removes = append(s.removes, paths...)
	err := s.removeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Storage.Remove(ctx, bucket, paths...)
}

func (s *recordingStorage) List(ctx context.Context, bucket, prefix string) ([]backend.ObjectInfo, error) {
	s.mu.Lock()
	s.lists++
	err := s.listErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Storage.List(ctx, bucket, prefix)
}

func (s *recordingStorage) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads) + len(s.removes) + s.lists
}

// recordingDB counts mutations and can fail inserts on demand.
type recordingDB struct {
	backend.Database

	mu        sync.Mutex
	inserts   []backend.Row
	updates   int
	deletes   int
	insertErr error
	updateErr error
}

func (d *recordingDB) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	d.mu.Lock()
	d.inserts = append(d.inserts, row)
	err := d.insertErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.Database.Insert(ctx, table, row)
}

func (d *recordingDB) Update(ctx context.Context, table, id string, patch backend.Row) (backend.Row, error) {
	d.mu.Lock()
	d.updates++
	err := d.updateErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.Database.Update(ctx, table, id, patch)
}

func (d *recordingDB) Delete(ctx context.Context, table, id string) error {
	d.mu.Lock()
	d.deletes++
	d.mu.Unlock()
	return d.Database.Delete(ctx, table, id)
}

func (d *recordingDB) mutations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inserts) + d.updates + d.deletes
}

type fixture struct {
	backend *testutil.Backend
	db      *recordingDB
	storage *recordingStorage
	opts    content.Options
}

// newFixture wires managers to an admin client through recording wrappers.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := testutil.TestBackend(t)
	c := b.AdminClient(t)
	return &fixture{
		backend: b,
		db:      &recordingDB{Database: c},
		storage: &recordingStorage{Storage: c},
		opts: content.Options{
			Logger: testutil.TestLoggerSilent(),
			Now:    b.Clock.Now,
		},
	}
}

func (f *fixture) videos() *content.VideoManager {
	return content.NewVideoManager(f.db, f.storage, f.opts)
}

// opaque hides Seek so duration probing is skipped.
type opaque struct{ io.Reader }

func videoFile(name string, size int) *media.File {
	return &media.File{
		Name:        name,
		ContentType: "video/mp4",
		Size:        int64(size),
		Body:        opaque{bytes.NewReader(make([]byte, size))},
	}
}

func ptr[T any](v T) *T { return &v }
