// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend defines the contract of the persistence service the site
// talks to: table queries and mutations, remote procedures, authentication
// and object storage. Implementations enforce authorization; callers never
// rely on hiding UI controls alone.
package backend

import (
	"context"
	"io"
	"time"
)

// Well-known tables, bucket and procedures.
const (
	TableSiteInfo     = "site_info"
	TableProducts     = "products"
	TableTestimonials = "testimonials"
	TableVideos       = "videos"

	BucketVideos = "videos"

	ProcUpdateSiteInfo = "update_site_info"
	ProcGetUserRole    = "get_user_role"
)

// Order sorts query results by one column.
type Order struct {
	Column     string
	Descending bool
}

// NewestFirst orders rows by creation time, newest first.
var NewestFirst = &Order{Column: "created_at", Descending: true}

// Query selects rows from a table. Filter entries are equality matches.
type Query struct {
	Filter map[string]string
	Order  *Order
}

// Database is the relational part of the persistence service.
type Database interface {
	Query(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
	RPC(ctx context.Context, name string, args map[string]any) (any, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Storage is the object-storage part of the persistence service.
type Storage interface {
	// Upload stores body at path and returns the stored path.
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
	// PublicURL resolves the public URL of path. It does not check existence.
	PublicURL(bucket, path string) string
	// Remove deletes the given paths. Missing paths are not an error.
	Remove(ctx context.Context, bucket string, paths ...string) error
	// List returns the objects under prefix. It fails when the bucket is unreachable.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// Client is the full persistence service as seen by one principal.
type Client interface {
	Database
	Auth
	Storage
}
