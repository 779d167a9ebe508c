// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package local is an embedded implementation of the persistence service
// contract: SQLite tables, remote procedures, password accounts with JWT
// access tokens, and filesystem-backed storage buckets. Every mutation is
// authorized here against the caller's account role.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/store"
)

// Defaults applied by New when Options leave a field zero.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	minSecretLength        = 32
)

// Options configures a Service.
type Options struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// AutoConfirm marks new accounts as confirmed, so sign-up signs in.
	AutoConfirm bool
	// StorageDir holds one sub-directory per bucket.
	StorageDir string
	// PublicBaseURL prefixes public object URLs, e.g. "http://localhost:8080".
	PublicBaseURL string
	Buckets       []string
	// MaxObjectSize caps a stored object in bytes. Zero means no cap.
	MaxObjectSize int64
	Now           func() time.Time
	Logger        *slog.Logger
}

// Service is the shared state behind every Client: database, buckets and
// token signing.
type Service struct {
	db      *sql.DB
	queries *store.Queries
	tokens  *tokenSigner
	buckets *bucketStore
	tables  map[string]*tableDef

	autoConfirm   bool
	maxObjectSize int64
	refreshTTL    time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// New creates a Service over a migrated database.
func New(db *sql.DB, opts Options) (*Service, error) {
	if len(opts.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if opts.StorageDir == "" {
		return nil, errors.New("storage directory is required")
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = []string{backend.BucketVideos}
	}

	buckets, err := newBucketStore(opts.StorageDir, opts.PublicBaseURL, opts.Buckets)
	if err != nil {
		return nil, err
	}

	return &Service{
		db:      db,
		queries: store.New(db),
		tokens: &tokenSigner{
			secret: []byte(opts.JWTSecret),
			ttl:    opts.AccessTokenTTL,
			now:    opts.Now,
		},
		buckets:       buckets,
		tables:        contentTables(),
		autoConfirm:   opts.AutoConfirm,
		maxObjectSize: opts.MaxObjectSize,
		refreshTTL:    opts.RefreshTokenTTL,
		now:           opts.Now,
		logger:        opts.Logger,
	}, nil
}

// NewClient returns a client that acts as whoever signs in through it.
// creds may be nil, in which case sessions live only in memory.
func (s *Service) NewClient(creds backend.CredentialStore) *Client {
	return &Client{
		svc:       s,
		creds:     creds,
		listeners: make(map[int]backend.AuthListener),
	}
}

// CreateUser registers an account directly, bypassing sign-up rules other
// than email format and password length.
func (s *Service) CreateUser(ctx context.Context, email, password, role string, confirmed bool) (store.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return store.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return store.User{}, backend.Wrap(backend.CodeInvalid, err, err.Error())
	}
	if role != "user" && role != "admin" {
		return store.User{}, backend.Errorf(backend.CodeInvalid, "Unknown role %q", role)
	}
	return s.createUser(ctx, email, password, role, confirmed)
}

// SetRole changes the site role of the account with email.
func (s *Service) SetRole(ctx context.Context, email, role string) error {
	if role != "user" && role != "admin" {
		return backend.Errorf(backend.CodeInvalid, "Unknown role %q", role)
	}
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.queries.UpdateUserRole(ctx, store.UpdateUserRoleParams{
		Role:      role,
		UpdatedAt: store.FormatTime(s.now()),
		ID:        u.ID,
	})
}

// ConfirmUser marks the account's email as confirmed.
func (s *Service) ConfirmUser(ctx context.Context, email string) error {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.queries.ConfirmUser(ctx, store.ConfirmUserParams{
		ConfirmedAt: store.FormatTime(s.now()),
		ID:          u.ID,
	})
}

// RevokeSessions signs the account out everywhere.
func (s *Service) RevokeSessions(ctx context.Context, email string) (int64, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	return s.queries.RevokeUserSessions(ctx, store.RevokeUserSessionsParams{
		RevokedAt: store.FormatTime(s.now()),
		UserID:    u.ID,
	})
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.queries.ListUsers(ctx)
}

// EnsureAdmin makes sure a confirmed admin account exists for email. It
// reports whether the account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	u, err := s.userByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != "admin" {
			if err := s.SetRole(ctx, email, "admin"); err != nil {
				return false, err
			}
		}
		if !u.ConfirmedAt.Valid {
			if err := s.ConfirmUser(ctx, email); err != nil {
				return false, err
			}
		}
		return false, nil
	case backend.IsCode(err, backend.CodeNotFound):
		if _, err := s.CreateUser(ctx, email, password, "admin", true); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}

// PurgeSessions deletes auth sessions that expired or were revoked.
func (s *Service) PurgeSessions(ctx context.Context) (int64, error) {
	return s.queries.DeleteStaleAuthSessions(ctx, store.FormatTime(s.now()))
}

func (s *Service) userByEmail(ctx context.Context, email string) (store.User, error) {
	u, err := s.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, backend.Errorf(backend.CodeNotFound, "User not found")
	}
	if err != nil {
		return store.User{}, backend.Wrap(backend.CodeUnavailable, err, "Database error finding user")
	}
	return u, nil
}
