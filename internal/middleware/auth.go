// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request protection.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/session"
)

// Access messages.
const (
	MsgSignInRequired = "You must be signed in to access this page."
	MsgAdminRequired  = "You must be an admin to access this page."
	MsgAuthLoading    = "Authentication is still loading. Please try again."
)

// AuthState reports the server's current auth state.
type AuthState interface {
	State() auth.State
}

// RequireAdmin admits a request only when its browser session belongs to
// the user currently signed in on the server and that user is an admin.
// Browsers that signed in as non-admins never hold the server session.
func RequireAdmin(sm *scs.SessionManager, state AuthState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := session.UserID(r.Context(), sm)
			if uid == "" {
				WriteError(w, http.StatusUnauthorized, MsgSignInRequired)
				return
			}
			if !session.IsAdmin(r.Context(), sm) {
				denyNonAdmin(w, r, uid)
				return
			}

			st := state.State()
			switch {
			case st.Loading:
				WriteError(w, http.StatusServiceUnavailable, MsgAuthLoading)
				return
			case st.User == nil || st.User.ID != uid:
				// Another admin took over the server session.
				_ = session.SignOut(r.Context(), sm)
				WriteError(w, http.StatusUnauthorized, MsgSignInRequired)
				return
			case !st.IsAdmin:
				denyNonAdmin(w, r, uid)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func denyNonAdmin(w http.ResponseWriter, r *http.Request, uid string) {
	slog.Warn("non-admin denied", "category", "auth", "user_id", uid, "path", r.URL.Path)
	WriteError(w, http.StatusForbidden, MsgAdminRequired)
}
