// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/util"
)

// PublicObjectPrefix is the URL path under which public objects are served.
const PublicObjectPrefix = "/storage/v1/object/public/"

const tempPrefix = ".upload-"

// bucketStore keeps each bucket as a directory under root.
type bucketStore struct {
	root    string
	baseURL string
	names   map[string]bool
}

func newBucketStore(root, baseURL string, buckets []string) (*bucketStore, error) {
	bs := &bucketStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		names:   make(map[string]bool, len(buckets)),
	}
	for _, b := range buckets {
		dir, err := util.SafeJoinPath(root, b)
		if err != nil || dir == filepath.Clean(root) {
			return nil, fmt.Errorf("invalid bucket name %q", b)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", b, err)
		}
		bs.names[b] = true
	}
	return bs, nil
}

// dir returns the directory of bucket.
func (bs *bucketStore) dir(bucket string) (string, error) {
	if !bs.names[bucket] {
		return "", backend.Errorf(backend.CodeNotFound, "Bucket not found")
	}
	dir := filepath.Join(bs.root, bucket)
	if _, err := os.Stat(dir); err != nil {
		return "", backend.Wrap(backend.CodeNotFound, err, "Bucket not found")
	}
	return dir, nil
}

// object resolves an object path inside bucket, rejecting traversal.
func (bs *bucketStore) object(bucket, name string) (string, error) {
	dir, err := bs.dir(bucket)
	if err != nil {
		return "", err
	}
	name = strings.TrimPrefix(name, "/")
	if name == "" || util.ContainsPathTraversal(name) || strings.HasPrefix(path.Base(name), tempPrefix) {
		return "", backend.Errorf(backend.CodeInvalid, "Invalid object path")
	}
	p, err := util.SafeJoinPath(dir, filepath.FromSlash(name))
	if err != nil || p == dir {
		return "", backend.Errorf(backend.CodeInvalid, "Invalid object path")
	}
	return p, nil
}

// Upload stores body at objectPath. Existing objects are never overwritten
// and bodies longer than the service's MaxObjectSize are rejected.
// Requires an admin.
func (c *Client) Upload(ctx context.Context, bucket, objectPath string, body io.Reader, _ string) (string, error) {
	if err := c.requireAdmin(ctx, "upload to", bucket); err != nil {
		return "", err
	}
	dest, err := c.svc.buckets.object(bucket, objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", backend.Wrap(backend.CodeUnavailable, err, "Failed to create object folder")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPrefix+"*")
	if err != nil {
		return "", backend.Wrap(backend.CodeUnavailable, err, "Failed to store object")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var src io.Reader = &ctxReader{ctx: ctx, r: body}
	if limit := c.svc.maxObjectSize; limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		_ = tmp.Close()
		return "", backend.Wrap(backend.CodeUnavailable, err, "Failed to store object")
	}
	if limit := c.svc.maxObjectSize; limit > 0 && n > limit {
		_ = tmp.Close()
		return "", backend.Errorf(backend.CodeInvalid, "The object exceeded the maximum allowed size")
	}
	if err := tmp.Close(); err != nil {
		return "", backend.Wrap(backend.CodeUnavailable, err, "Failed to store object")
	}

	// Link fails when dest exists, so a concurrent upload cannot be clobbered.
	if err := os.Link(tmp.Name(), dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", backend.Errorf(backend.CodeConflict, "The resource already exists")
		}
		return "", backend.Wrap(backend.CodeUnavailable, err, "Failed to store object")
	}
	c.svc.logger.Info("object stored", "bucket", bucket, "path", objectPath)
	return strings.TrimPrefix(objectPath, "/"), nil
}

// PublicURL returns the URL the object is served at.
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.svc.buckets.baseURL + PublicObjectPrefix + bucket + "/" + strings.TrimPrefix(objectPath, "/")
}

// Remove deletes objects. Missing objects are skipped. Requires an admin.
func (c *Client) Remove(ctx context.Context, bucket string, paths ...string) error {
	if err := c.requireAdmin(ctx, "remove from", bucket); err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		dest, err := c.svc.buckets.object(bucket, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, backend.Wrap(backend.CodeUnavailable, err, "Failed to remove "+p))
			continue
		}
		c.svc.logger.Info("object removed", "bucket", bucket, "path", p)
	}
	return errors.Join(errs...)
}

// List returns objects whose path starts with prefix, sorted by name.
// Requires an admin.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]backend.ObjectInfo, error) {
	if err := c.requireAdmin(ctx, "list", bucket); err != nil {
		return nil, err
	}
	dir, err := c.svc.buckets.dir(bucket)
	if err != nil {
		return nil, err
	}

	var out []backend.ObjectInfo
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, backend.ObjectInfo{Name: rel, Size: info.Size(), UpdatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Failed to list bucket")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ObjectHandler serves public objects at
// PublicObjectPrefix + "{bucket}/{path}". Mount it under PublicObjectPrefix.
func (s *Service) ObjectHandler() http.Handler {
	return http.StripPrefix(strings.TrimSuffix(PublicObjectPrefix, "/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/")
		bucket, name, ok := strings.Cut(rest, "/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		p, err := s.buckets.object(bucket, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		f, err := os.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}))
}

// ctxReader stops copying once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
