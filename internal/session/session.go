// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session manages browser sessions for the admin API.
package session

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// CookieName is the session cookie name.
const CookieName = "wellness_session"

// Session keys.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyAdmin  = "is_admin"
)

// New creates a session manager backed by the sessions table in db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev

	return sm
}

// SignIn renews the session token and records the signed-in user and
// whether the user was an admin at sign-in.
func SignIn(ctx context.Context, sm *scs.SessionManager, userID, email string, isAdmin bool) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, KeyUserID, userID)
	sm.Put(ctx, KeyEmail, email)
	sm.Put(ctx, KeyAdmin, isAdmin)
	return nil
}

// SignOut destroys the session.
func SignOut(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// UserID returns the signed-in user's ID, or "".
func UserID(ctx context.Context, sm *scs.SessionManager) string {
	return sm.GetString(ctx, KeyUserID)
}

// Email returns the signed-in user's email, or "".
func Email(ctx context.Context, sm *scs.SessionManager) string {
	return sm.GetString(ctx, KeyEmail)
}

// IsAdmin reports whether the user signed in as an admin.
func IsAdmin(ctx context.Context, sm *scs.SessionManager) bool {
	return sm.GetBool(ctx, KeyAdmin)
}
