// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds typed queries for accounts and auth sessions.
type Queries struct {
	db DBTX
}

// New creates Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// User is a row of the users table.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	ConfirmedAt  sql.NullString
	LastSignInAt sql.NullString
	CreatedAt    string
	UpdatedAt    string
}

// AuthSession is a row of the auth_sessions table.
type AuthSession struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	CreatedAt        string
	ExpiresAt        string
	RevokedAt        sql.NullString
}

const userColumns = `id, email, password_hash, role, confirmed_at, last_sign_in_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.ConfirmedAt, &u.LastSignInAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUserParams holds the values for CreateUser.
type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	ConfirmedAt  sql.NullString
	CreatedAt    string
}

// CreateUser inserts a user.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, confirmed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+userColumns,
		arg.ID, arg.Email, arg.PasswordHash, arg.Role, arg.ConfirmedAt, arg.CreatedAt, arg.CreatedAt)
	return scanUser(row)
}

// GetUserByID returns the user with id.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns the user with email (case-insensitive).
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// ListUsers returns all users ordered by email.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRoleParams holds the values for UpdateUserRole.
type UpdateUserRoleParams struct {
	Role      string
	UpdatedAt string
	ID        string
}

// UpdateUserRole changes a user's role.
func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, arg.Role, arg.UpdatedAt, arg.ID)
	return err
}

// ConfirmUserParams holds the values for ConfirmUser.
type ConfirmUserParams struct {
	ConfirmedAt string
	ID          string
}

// ConfirmUser marks the user's email as confirmed.
func (q *Queries) ConfirmUser(ctx context.Context, arg ConfirmUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET confirmed_at = ?, updated_at = ? WHERE id = ? AND confirmed_at IS NULL`,
		arg.ConfirmedAt, arg.ConfirmedAt, arg.ID)
	return err
}

// UpdateUserPasswordParams holds the values for UpdateUserPassword.
type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    string
	ID           string
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateUserLastSignInParams holds the values for UpdateUserLastSignIn.
type UpdateUserLastSignInParams struct {
	LastSignInAt string
	ID           string
}

// UpdateUserLastSignIn records a successful sign-in.
func (q *Queries) UpdateUserLastSignIn(ctx context.Context, arg UpdateUserLastSignInParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET last_sign_in_at = ? WHERE id = ?`, arg.LastSignInAt, arg.ID)
	return err
}

const authSessionColumns = `id, user_id, refresh_token_hash, created_at, expires_at, revoked_at`

func scanAuthSession(row interface{ Scan(...any) error }) (AuthSession, error) {
	var s AuthSession
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	return s, err
}

// CreateAuthSessionParams holds the values for CreateAuthSession.
type CreateAuthSessionParams struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	CreatedAt        string
	ExpiresAt        string
}

// CreateAuthSession inserts an auth session.
func (q *Queries) CreateAuthSession(ctx context.Context, arg CreateAuthSessionParams) (AuthSession, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, refresh_token_hash, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+authSessionColumns,
		arg.ID, arg.UserID, arg.RefreshTokenHash, arg.CreatedAt, arg.ExpiresAt)
	return scanAuthSession(row)
}

// GetAuthSessionByID returns the auth session with id.
func (q *Queries) GetAuthSessionByID(ctx context.Context, id string) (AuthSession, error) {
	return scanAuthSession(q.db.QueryRowContext(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE id = ?`, id))
}

// GetAuthSessionByRefreshHash returns the auth session owning a refresh token hash.
func (q *Queries) GetAuthSessionByRefreshHash(ctx context.Context, hash string) (AuthSession, error) {
	return scanAuthSession(q.db.QueryRowContext(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE refresh_token_hash = ?`, hash))
}

// RotateRefreshTokenParams holds the values for RotateRefreshToken.
type RotateRefreshTokenParams struct {
	RefreshTokenHash string
	ExpiresAt        string
	ID               string
	OldHash          string
}

// RotateRefreshToken swaps the refresh token of a live session. It reports
// false when the old token was already rotated or the session revoked.
func (q *Queries) RotateRefreshToken(ctx context.Context, arg RotateRefreshTokenParams) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE auth_sessions SET refresh_token_hash = ?, expires_at = ?
		 WHERE id = ? AND refresh_token_hash = ? AND revoked_at IS NULL`,
		arg.RefreshTokenHash, arg.ExpiresAt, arg.ID, arg.OldHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RevokeAuthSessionParams holds the values for RevokeAuthSession.
type RevokeAuthSessionParams struct {
	RevokedAt string
	ID        string
}

// RevokeAuthSession revokes one session.
func (q *Queries) RevokeAuthSession(ctx context.Context, arg RevokeAuthSessionParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, arg.RevokedAt, arg.ID)
	return err
}

// RevokeUserSessionsParams holds the values for RevokeUserSessions.
type RevokeUserSessionsParams struct {
	RevokedAt string
	UserID    string
}

// RevokeUserSessions revokes every live session of a user and returns how many.
func (q *Queries) RevokeUserSessions(ctx context.Context, arg RevokeUserSessionsParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE auth_sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`, arg.RevokedAt, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteStaleAuthSessions removes sessions that expired or were revoked before cutoff.
func (q *Queries) DeleteStaleAuthSessions(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)`,
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
