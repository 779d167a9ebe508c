// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"time"
)

// User is the authenticated principal as reported by the service.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Session is an authenticated session. Tokens are opaque to callers.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuthEvent names a session change.
type AuthEvent string

// Session change events.
const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthListener receives session changes. session is nil on sign-out.
type AuthListener func(event AuthEvent, session *Session)

// Auth is the authentication part of the persistence service.
type Auth interface {
	// SignUp registers an account. The returned session is nil when the
	// account must be confirmed before signing in.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// GetSession returns the current session, restoring persisted
	// credentials if needed. It returns nil, nil when nobody is signed in.
	GetSession(ctx context.Context) (*Session, error)
	RefreshSession(ctx context.Context) (*Session, error)
	// OnAuthStateChange registers fn and returns a function that removes it.
	OnAuthStateChange(fn AuthListener) (unsubscribe func())
}

// Credentials is the persisted form of a session.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CredentialStore persists credentials between process restarts.
type CredentialStore interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
}
