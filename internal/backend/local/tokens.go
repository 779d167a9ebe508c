// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "wellness-site"

// accessClaims are carried by access tokens. The role claim is the
// database role of the connection, not the user's site role.
type accessClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type tokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// issue creates an HS256 access token for userID within authSessionID.
func (ts *tokenSigner) issue(userID, email, authSessionID string) (string, time.Time, error) {
	now := ts.now()
	exp := now.Add(ts.ttl)
	claims := accessClaims{
		Email:     email,
		SessionID: authSessionID,
		Role:      "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

// parse verifies token. An expired token yields jwt.ErrTokenExpired.
func (ts *tokenSigner) parse(token string) (*accessClaims, error) {
	return ts.parseWith(token,
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)
}

// parseUnverifiedExpiry verifies the signature but ignores expiry, so a
// stale session can still be identified for refresh or revocation.
func (ts *tokenSigner) parseUnverifiedExpiry(token string) (*accessClaims, error) {
	return ts.parseWith(token, jwt.WithoutClaimsValidation())
}

func (ts *tokenSigner) parseWith(token string, opts ...jwt.ParserOption) (*accessClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return ts.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.New("token is missing subject or session")
	}
	return claims, nil
}

// newRefreshToken returns an opaque random refresh token.
func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken is the stored form of a refresh token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
