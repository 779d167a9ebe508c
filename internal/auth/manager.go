// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/model"
)

// ConfirmEmailMessage is shown after a sign-up that needs email confirmation.
const ConfirmEmailMessage = "Please check your email to confirm your account before signing in."

// Client is the part of the persistence service the Manager needs.
type Client interface {
	backend.Auth
	RPC(ctx context.Context, name string, args map[string]any) (any, error)
}

// EventRecorder counts authentication outcomes.
type EventRecorder interface {
	RecordAuthEvent(event string)
}

// State is a snapshot of the signed-in principal.
type State struct {
	User    *backend.User `json:"user"`
	IsAdmin bool          `json:"is_admin"`
	Loading bool          `json:"loading"`
}

// SignUpResult tells the caller what happens next after a sign-up.
type SignUpResult struct {
	ConfirmationRequired bool   `json:"confirmation_required"`
	Message              string `json:"message"`
}

// Manager tracks the current session and whether it belongs to an admin.
// The admin flag is derived from the service on every session change and
// never carried over from a previous session.
type Manager struct {
	client      Client
	logger      *slog.Logger
	recorder    EventRecorder
	roleTimeout time.Duration

	mu            sync.RWMutex
	session       *backend.Session
	isAdmin       bool
	loading       bool
	resolvedToken string
	gen           uint64

	subscribeOnce sync.Once
	closeOnce     sync.Once
	unsubscribe   func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder counts sign-in, sign-up and sign-out outcomes.
func WithRecorder(r EventRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager. It reports Loading until Initialize ends.
func NewManager(client Client, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		client:      client,
		logger:      logger,
		roleTimeout: 10 * time.Second,
		loading:     true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize subscribes to session changes and restores any existing
// session. A failed restore is treated as nobody signed in.
func (m *Manager) Initialize(ctx context.Context) {
	m.subscribeOnce.Do(func() {
		m.unsubscribe = m.client.OnAuthStateChange(m.handleAuthChange)
	})

	sess, err := m.client.GetSession(ctx)
	if err != nil {
		m.logger.Warn("failed to restore session", "error", err)
		sess = nil
	}
	m.apply(ctx, sess)
}

// Close removes the session change subscription. It is safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}

// SignUp registers an account.
func (m *Manager) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	email = strings.TrimSpace(email)
	if err := requireCredentials(email, password); err != nil {
		return SignUpResult{}, err
	}

	sess, err := m.client.SignUp(ctx, email, password)
	if err != nil {
		m.record("sign_up_failed")
		return SignUpResult{}, err
	}
	m.record("sign_up")

	if sess == nil {
		return SignUpResult{ConfirmationRequired: true, Message: ConfirmEmailMessage}, nil
	}
	m.applyIfNew(ctx, sess)
	return SignUpResult{Message: "Account created"}, nil
}

// SignIn signs in with email and password. On success the user and the
// admin flag are up to date when it returns. On failure the error carries
// the service's rejection message.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := requireCredentials(email, password); err != nil {
		return err
	}

	sess, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		m.record("sign_in_failed")
		return err
	}
	m.record("sign_in")
	m.applyIfNew(ctx, sess)
	return nil
}

// SignOut ends the session. Local state is cleared even when the service
// call fails; the failure is still returned.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.client.SignOut(ctx)
	if err != nil {
		m.logger.Warn("sign out failed at the service, clearing local session anyway", "error", err)
	}
	m.apply(ctx, nil)
	m.record("sign_out")
	return err
}

// Refresh renews the access token.
func (m *Manager) Refresh(ctx context.Context) error {
	sess, err := m.client.RefreshSession(ctx)
	if err != nil {
		if backend.IsCode(err, backend.CodeUnauthorized) {
			m.apply(ctx, nil)
		}
		return err
	}
	m.applyIfNew(ctx, sess)
	return nil
}

// State returns a snapshot of the current principal.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := State{IsAdmin: m.isAdmin, Loading: m.loading}
	if m.session != nil {
		u := m.session.User
		st.User = &u
	}
	return st
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *backend.User {
	return m.State().User
}

// IsAdmin reports whether the signed-in user is an admin.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isAdmin
}

// Loading reports whether the initial session restore is still running.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) handleAuthChange(event backend.AuthEvent, sess *backend.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.roleTimeout)
	defer cancel()

	m.logger.Debug("auth state changed", "event", string(event))
	if event == backend.EventSignedOut || sess == nil {
		m.apply(ctx, nil)
		return
	}
	m.applyIfNew(ctx, sess)
}

// applyIfNew applies sess unless its token has already been applied.
func (m *Manager) applyIfNew(ctx context.Context, sess *backend.Session) {
	m.mu.RLock()
	done := m.session != nil && m.resolvedToken == sess.AccessToken
	m.mu.RUnlock()
	if !done {
		m.apply(ctx, sess)
	}
}

// apply installs sess and derives the admin flag for it. A newer change
// that lands while the role lookup runs wins.
func (m *Manager) apply(ctx context.Context, sess *backend.Session) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.session = sess
	m.isAdmin = false
	m.resolvedToken = ""
	if sess == nil {
		m.loading = false
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	admin := m.lookupAdmin(ctx)

	m.mu.Lock()
	if m.gen == gen {
		m.isAdmin = admin
		m.resolvedToken = sess.AccessToken
		m.loading = false
	}
	m.mu.Unlock()
}

// lookupAdmin asks the service for the caller's role. Failures mean not admin.
func (m *Manager) lookupAdmin(ctx context.Context) bool {
	res, err := m.client.RPC(ctx, backend.ProcGetUserRole, nil)
	if err != nil {
		m.logger.Warn("role lookup failed, treating user as non-admin", "error", err)
		return false
	}
	role, _ := res.(string)
	return model.IsAdminRole(role)
}

func (m *Manager) record(event string) {
	if m.recorder != nil {
		m.recorder.RecordAuthEvent(event)
	}
}

func requireCredentials(email, password string) error {
	if email == "" {
		return model.NewValidationError("email", "Email is required")
	}
	if password == "" {
		return model.NewValidationError("password", "Password is required")
	}
	return nil
}
