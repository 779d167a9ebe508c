// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/store"
)

// Client is one principal's view of the Service. It keeps the current
// session, persists it through a CredentialStore and notifies listeners.
type Client struct {
	svc   *Service
	creds backend.CredentialStore

	// opMu serializes session changes. Listeners run after it is released.
	opMu     sync.Mutex
	session  *backend.Session
	restored bool

	mu        sync.Mutex
	listeners map[int]backend.AuthListener
	nextID    int
}

var _ backend.Client = (*Client)(nil)

type authEvent struct {
	event   backend.AuthEvent
	session *backend.Session
}

// SignUp registers an account. With auto-confirm the new account is
// signed in and its session returned.
func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, backend.Wrap(backend.CodeInvalid, err, err.Error())
	}

	u, err := c.svc.createUser(ctx, email, password, "user", c.svc.autoConfirm)
	if err != nil {
		return nil, err
	}
	if !c.svc.autoConfirm {
		return nil, nil
	}

	c.opMu.Lock()
	sess, err := c.svc.openSession(ctx, u)
	if err == nil {
		c.setSessionLocked(ctx, sess)
	}
	c.opMu.Unlock()
	if err != nil {
		return nil, err
	}
	c.emit(authEvent{backend.EventSignedIn, sess})
	return sess, nil
}

// SignIn verifies the password and opens a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	u, err := c.svc.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.opMu.Lock()
	sess, err := c.svc.openSession(ctx, u)
	if err == nil {
		c.setSessionLocked(ctx, sess)
	}
	c.opMu.Unlock()
	if err != nil {
		return nil, err
	}
	c.emit(authEvent{backend.EventSignedIn, sess})
	return sess, nil
}

// SignOut revokes the current session. Local state is cleared even when
// the revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	sess := c.session
	var revokeErr error
	if sess != nil {
		if claims, err := c.svc.tokens.parseUnverifiedExpiry(sess.AccessToken); err == nil {
			err = c.svc.queries.RevokeAuthSession(ctx, store.RevokeAuthSessionParams{
				RevokedAt: store.FormatTime(c.svc.now()),
				ID:        claims.SessionID,
			})
			if err != nil {
				revokeErr = backend.Wrap(backend.CodeUnavailable, err, "Failed to sign out")
			}
		}
	}
	c.clearSessionLocked(ctx)
	c.opMu.Unlock()

	if sess != nil {
		c.emit(authEvent{backend.EventSignedOut, nil})
	}
	return revokeErr
}

// GetSession returns the current session. On first use it restores
// persisted credentials; an expired access token is refreshed.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.opMu.Lock()
	var events []authEvent

	if c.session == nil && !c.restored {
		c.restored = true
		if err := c.restoreLocked(ctx); err != nil {
			c.opMu.Unlock()
			return nil, err
		}
	}

	if c.session != nil && c.session.Expired(c.svc.now()) {
		ev, err := c.refreshLocked(ctx)
		events = append(events, ev)
		if err != nil {
			c.svc.logger.Debug("session refresh on read failed", "error", err)
		}
	}
	sess := c.session
	c.opMu.Unlock()

	c.emit(events...)
	return sess, nil
}

// RefreshSession rotates the refresh token and issues a new access token.
func (c *Client) RefreshSession(ctx context.Context) (*backend.Session, error) {
	c.opMu.Lock()
	ev, err := c.refreshLocked(ctx)
	sess := c.session
	c.opMu.Unlock()

	c.emit(ev)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// OnAuthStateChange registers fn for session changes.
func (c *Client) OnAuthStateChange(fn backend.AuthListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(events ...authEvent) {
	for _, ev := range events {
		if ev.event == "" {
			continue
		}
		c.mu.Lock()
		fns := make([]backend.AuthListener, 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn(ev.event, ev.session)
		}
	}
}

// refreshLocked exchanges the refresh token. A rejected token signs the
// client out. Callers hold opMu.
func (c *Client) refreshLocked(ctx context.Context) (authEvent, error) {
	if c.session == nil {
		return authEvent{}, backend.Errorf(backend.CodeUnauthorized, "Auth session missing!")
	}

	sess, err := c.svc.refresh(ctx, c.session.RefreshToken)
	if err != nil {
		if backend.IsCode(err, backend.CodeUnauthorized) {
			c.clearSessionLocked(ctx)
			return authEvent{backend.EventSignedOut, nil}, err
		}
		return authEvent{}, err
	}
	c.setSessionLocked(ctx, sess)
	return authEvent{backend.EventTokenRefreshed, sess}, nil
}

// restoreLocked rebuilds the session from persisted credentials. Stale or
// forged credentials are discarded. Callers hold opMu.
func (c *Client) restoreLocked(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	cr, err := c.creds.Load(ctx)
	if err != nil {
		return backend.Wrap(backend.CodeUnavailable, err, "Failed to load stored credentials")
	}
	if cr == nil {
		return nil
	}

	sess, err := c.svc.sessionFromCredentials(ctx, *cr)
	if err != nil {
		c.svc.logger.Info("discarding stored credentials", "error", err)
		if err := c.creds.Clear(ctx); err != nil {
			c.svc.logger.Warn("failed to clear stored credentials", "error", err)
		}
		return nil
	}
	c.session = sess
	return nil
}

func (c *Client) setSessionLocked(ctx context.Context, sess *backend.Session) {
	c.session = sess
	c.restored = true
	if c.creds == nil {
		return
	}
	err := c.creds.Save(ctx, backend.Credentials{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	})
	if err != nil {
		c.svc.logger.Warn("failed to persist credentials", "error", err)
	}
}

func (c *Client) clearSessionLocked(ctx context.Context) {
	c.session = nil
	c.restored = true
	if c.creds == nil {
		return
	}
	if err := c.creds.Clear(ctx); err != nil {
		c.svc.logger.Warn("failed to clear stored credentials", "error", err)
	}
}

// principal describes the caller of a database or storage operation.
type principal struct {
	UserID string
	Role   string
}

func (p principal) authenticated() bool { return p.UserID != "" }

// principal resolves the caller from the current session. Unknown,
// revoked or expired sessions resolve to an anonymous caller.
func (c *Client) principal(ctx context.Context) (principal, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return principal{}, err
	}
	if sess == nil {
		return principal{}, nil
	}
	claims, err := c.svc.tokens.parse(sess.AccessToken)
	if err != nil {
		return principal{}, nil
	}
	u, ok, err := c.svc.liveUser(ctx, claims.SessionID, claims.Subject)
	if err != nil || !ok {
		return principal{}, err
	}
	return principal{UserID: u.ID, Role: u.Role}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", backend.Errorf(backend.CodeInvalid, "Unable to validate email address: invalid format")
	}
	return email, nil
}

func (s *Service) createUser(ctx context.Context, email, password, role string, confirmed bool) (store.User, error) {
	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, backend.Errorf(backend.CodeConflict, "User already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, backend.Wrap(backend.CodeUnavailable, err, "Database error checking user")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.User{}, backend.Wrap(backend.CodeInternal, err, "Failed to hash password")
	}

	now := store.FormatTime(s.now())
	var confirmedAt sql.NullString
	if confirmed {
		confirmedAt = sql.NullString{String: now, Valid: true}
	}
	u, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		ConfirmedAt:  confirmedAt,
		CreatedAt:    now,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return store.User{}, backend.Errorf(backend.CodeConflict, "User already registered")
		}
		return store.User{}, backend.Wrap(backend.CodeUnavailable, err, "Database error saving new user")
	}
	s.logger.Info("user registered", "user_id", u.ID, "confirmed", confirmed)
	return u, nil
}

// authenticate checks email and password. Both unknown accounts and wrong
// passwords get the same message.
func (s *Service) authenticate(ctx context.Context, email, password string) (store.User, error) {
	invalid := backend.Errorf(backend.CodeInvalid, "Invalid login credentials")

	u, err := s.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, invalid
	}
	if err != nil {
		return store.User{}, backend.Wrap(backend.CodeUnavailable, err, "Database error finding user")
	}

	ok, err := auth.CheckPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return store.User{}, invalid
	}
	if !u.ConfirmedAt.Valid {
		return store.User{}, backend.Errorf(backend.CodeInvalid, "Email not confirmed")
	}

	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				PasswordHash: hash,
				UpdatedAt:    store.FormatTime(s.now()),
				ID:           u.ID,
			}); err != nil {
				s.logger.Warn("failed to upgrade password hash", "user_id", u.ID, "error", err)
			}
		}
	}
	if err := s.queries.UpdateUserLastSignIn(ctx, store.UpdateUserLastSignInParams{
		LastSignInAt: store.FormatTime(s.now()),
		ID:           u.ID,
	}); err != nil {
		s.logger.Warn("failed to record sign-in", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// openSession creates an auth session and its tokens for u.
func (s *Service) openSession(ctx context.Context, u store.User) (*backend.Session, error) {
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, backend.Wrap(backend.CodeInternal, err, "Failed to create session")
	}
	now := s.now()
	as, err := s.queries.CreateAuthSession(ctx, store.CreateAuthSessionParams{
		ID:               uuid.New().String(),
		UserID:           u.ID,
		RefreshTokenHash: hashToken(refresh),
		CreatedAt:        store.FormatTime(now),
		ExpiresAt:        store.FormatTime(now.Add(s.refreshTTL)),
	})
	if err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error creating session")
	}
	return s.sessionFor(u, as.ID, refresh)
}

func (s *Service) sessionFor(u store.User, authSessionID, refresh string) (*backend.Session, error) {
	access, exp, err := s.tokens.issue(u.ID, u.Email, authSessionID)
	if err != nil {
		return nil, backend.Wrap(backend.CodeInternal, err, "Failed to create session")
	}
	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         toBackendUser(u),
	}, nil
}

// refresh rotates refreshToken and returns the new session.
func (s *Service) refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	invalid := backend.Errorf(backend.CodeUnauthorized, "Invalid Refresh Token")

	as, err := s.queries.GetAuthSessionByRefreshHash(ctx, hashToken(refreshToken))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalid
	}
	if err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error refreshing session")
	}
	if as.RevokedAt.Valid || sessionExpired(as.ExpiresAt, s.now()) {
		return nil, invalid
	}
	u, err := s.queries.GetUserByID(ctx, as.UserID)
	if err != nil {
		return nil, invalid
	}

	next, err := newRefreshToken()
	if err != nil {
		return nil, backend.Wrap(backend.CodeInternal, err, "Failed to refresh session")
	}
	ok, err := s.queries.RotateRefreshToken(ctx, store.RotateRefreshTokenParams{
		RefreshTokenHash: hashToken(next),
		ExpiresAt:        store.FormatTime(s.now().Add(s.refreshTTL)),
		ID:               as.ID,
		OldHash:          as.RefreshTokenHash,
	})
	if err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error refreshing session")
	}
	if !ok {
		return nil, invalid
	}
	return s.sessionFor(u, as.ID, next)
}

// sessionFromCredentials validates persisted credentials. An expired
// access token is refreshed.
func (s *Service) sessionFromCredentials(ctx context.Context, cr backend.Credentials) (*backend.Session, error) {
	claims, err := s.tokens.parseUnverifiedExpiry(cr.AccessToken)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(cr.ExpiresAt) {
		return s.refresh(ctx, cr.RefreshToken)
	}
	u, ok, err := s.liveUser(ctx, claims.SessionID, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, backend.Errorf(backend.CodeUnauthorized, "Session revoked")
	}
	return &backend.Session{
		AccessToken:  cr.AccessToken,
		RefreshToken: cr.RefreshToken,
		ExpiresAt:    cr.ExpiresAt,
		User:         toBackendUser(u),
	}, nil
}

// liveUser loads the user of a non-revoked auth session.
func (s *Service) liveUser(ctx context.Context, authSessionID, userID string) (store.User, bool, error) {
	as, err := s.queries.GetAuthSessionByID(ctx, authSessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, backend.Wrap(backend.CodeUnavailable, err, "Database error loading session")
	}
	if as.RevokedAt.Valid || as.UserID != userID {
		return store.User{}, false, nil
	}
	u, err := s.queries.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, backend.Wrap(backend.CodeUnavailable, err, "Database error loading user")
	}
	return u, true, nil
}

func sessionExpired(expiresAt string, now time.Time) bool {
	t, err := store.ParseTime(expiresAt)
	return err != nil || !now.Before(t)
}

func toBackendUser(u store.User) backend.User {
	out := backend.User{ID: u.ID, Email: u.Email}
	if t, err := store.ParseTime(u.CreatedAt); err == nil {
		out.CreatedAt = t
	}
	if u.ConfirmedAt.Valid {
		if t, err := store.ParseTime(u.ConfirmedAt.String); err == nil {
			out.ConfirmedAt = &t
		}
	}
	return out
}
