// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/mileusna/useragent"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/middleware"
	"github.com/olegiv/wellness-site/internal/session"
	"github.com/olegiv/wellness-site/internal/util"
)

// AuthHandler handles sign-up, sign-in and sign-out.
//
// The server holds one backend session, and only an admin may take it.
// Every sign-up and sign-in is first checked on a fresh client, so a
// visitor's account never replaces the admin's session.
type AuthHandler struct {
	manager         *auth.Manager
	newClient       func() auth.Client
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
	recorder        auth.EventRecorder
	logger          *slog.Logger
}

// AuthDeps holds the dependencies of an AuthHandler.
type AuthDeps struct {
	// Manager holds the server's admin session.
	Manager *auth.Manager
	// NewClient returns a client with no session and no persisted credentials.
	NewClient       func() auth.Client
	Sessions        *scs.SessionManager
	LoginProtection *middleware.LoginProtection // optional
	Recorder        auth.EventRecorder          // optional
	Logger          *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(d AuthDeps) *AuthHandler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		manager:         d.Manager,
		newClient:       d.NewClient,
		sessionManager:  d.Sessions,
		loginProtection: d.LoginProtection,
		recorder:        d.Recorder,
		logger:          logger.With("category", "auth"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionView is what the browser learns about its session.
type SessionView struct {
	User    *backend.User `json:"user"`
	IsAdmin bool          `json:"is_admin"`
	Loading bool          `json:"loading"`
}

// SignUp handles POST /api/auth/signup. An account that needs no
// confirmation is signed in on this browser only.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	trial, release := h.trial(auth.WithRecorder(h.recorder))
	defer release(r.Context())

	res, err := trial.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("sign-up rejected", "email", req.Email, "error", err)
		writeError(w, err)
		return
	}

	if !res.ConfirmationRequired {
		if u := trial.User(); u != nil {
			if err := session.SignIn(r.Context(), h.sessionManager, u.ID, u.Email, false); err != nil {
				writeError(w, fmt.Errorf("starting browser session: %w", err))
				return
			}
		}
	}
	writeData(w, http.StatusCreated, res)
}

// SignIn handles POST /api/auth/signin. The credentials are checked on a
// fresh client; only an admin then takes over the server session.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := h.logger.With(append([]any{"email", email, "ip", util.ClientIP(r)}, clientAttrs(r)...)...)

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			logger.Warn("sign-in attempt on locked account")
			writeErrorMessage(w, http.StatusTooManyRequests, lockedMessage(remaining))
			return
		}
	}

	trial, release := h.trial()
	err := trial.SignIn(r.Context(), email, req.Password)
	st := trial.State()
	release(r.Context())
	if err != nil {
		h.signInFailed(w, logger, email, err)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}
	if st.User == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, middleware.MsgAuthLoading)
		return
	}

	if st.IsAdmin {
		if err := h.manager.SignIn(r.Context(), email, req.Password); err != nil {
			logger.Warn("admin sign-in failed on the server session", "error", err)
			writeError(w, err)
			return
		}
		st = h.manager.State()
		if st.User == nil {
			writeErrorMessage(w, http.StatusServiceUnavailable, middleware.MsgAuthLoading)
			return
		}
	} else {
		h.record("sign_in")
	}

	if err := session.SignIn(r.Context(), h.sessionManager, st.User.ID, st.User.Email, st.IsAdmin); err != nil {
		writeError(w, fmt.Errorf("starting browser session: %w", err))
		return
	}
	logger.Info("signed in", "user_id", st.User.ID, "is_admin", st.IsAdmin)
	writeData(w, http.StatusOK, SessionView(st))
}

func (h *AuthHandler) signInFailed(w http.ResponseWriter, logger *slog.Logger, email string, err error) {
	h.record("sign_in_failed")
	status := errorStatus(err)
	if status == http.StatusBadRequest && backend.CodeOf(err) == backend.CodeInvalid {
		status = http.StatusUnauthorized
	}
	if status == http.StatusUnauthorized && h.loginProtection != nil {
		if locked, d := h.loginProtection.RecordFailedAttempt(email); locked {
			logger.Warn("account locked after failed sign-ins", "duration", d.String())
			writeErrorMessage(w, http.StatusTooManyRequests, lockedMessage(d))
			return
		}
	}
	logger.Info("sign-in failed", "error", err)
	writeErrorMessage(w, status, errorMessage(err))
}

// trial returns a manager over a fresh client and a func that revokes
// whatever session that client holds.
func (h *AuthHandler) trial(opts ...auth.Option) (*auth.Manager, func(context.Context)) {
	c := h.newClient()
	return auth.NewManager(c, h.logger, opts...), func(ctx context.Context) {
		if err := c.SignOut(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("failed to revoke trial session", "error", err)
		}
	}
}

func (h *AuthHandler) record(event string) {
	if h.recorder != nil {
		h.recorder.RecordAuthEvent(event)
	}
}

// SignOut handles POST /api/auth/signout. The server session is only
// ended when it belongs to the caller.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	uid := session.UserID(r.Context(), h.sessionManager)
	var signOutErr error
	if uid != "" {
		if u := h.manager.User(); u != nil && u.ID == uid {
			signOutErr = h.manager.SignOut(r.Context())
		}
	}
	if err := session.SignOut(r.Context(), h.sessionManager); err != nil {
		writeError(w, fmt.Errorf("ending browser session: %w", err))
		return
	}
	if signOutErr != nil {
		h.logger.Warn("sign-out failed at the service", "user_id", uid, "error", signOutErr)
	}
	writeData(w, http.StatusOK, SessionView{})
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.viewFor(r))
}

func (h *AuthHandler) viewFor(r *http.Request) SessionView {
	ctx := r.Context()
	st := h.manager.State()
	uid := session.UserID(ctx, h.sessionManager)
	switch {
	case uid == "":
		return SessionView{Loading: st.Loading}
	case !session.IsAdmin(ctx, h.sessionManager):
		return SessionView{User: &backend.User{ID: uid, Email: session.Email(ctx, h.sessionManager)}}
	case st.User == nil || st.User.ID != uid:
		return SessionView{Loading: st.Loading}
	}
	return SessionView(st)
}

func lockedMessage(d time.Duration) string {
	return fmt.Sprintf("Too many failed sign-in attempts. Try again in %s.", d.Round(time.Second))
}

// clientAttrs returns browser and OS log fields for the request.
func clientAttrs(r *http.Request) []any {
	s := r.Header.Get("User-Agent")
	if s == "" {
		return nil
	}
	ua := useragent.Parse(s)
	return []any{"browser", ua.Name, "os", ua.OS}
}
