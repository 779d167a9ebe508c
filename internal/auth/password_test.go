// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Fatalf("unexpected hash prefix: %s", hash)
	}
	if NeedsRehash(hash) {
		t.Error("fresh hash should not need rehash")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"changeme", true},
		{"wrongpassword", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := CheckPassword(tt.password, hash)
		if err != nil {
			t.Fatalf("CheckPassword(%q) error: %v", tt.password, err)
		}
		if got != tt.want {
			t.Errorf("CheckPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}

func TestCheckPassword_LegacyParameters(t *testing.T) {
	// Hash created with older parameters (m=65536,t=1,p=4) for "changeme".
	legacy := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	valid, err := CheckPassword("changeme", legacy)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("legacy hash rejected correct password")
	}
	if !NeedsRehash(legacy) {
		t.Error("legacy hash should need rehash")
	}
}

func TestCheckPassword_Malformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$bcrypt$v=1$m=1,t=1,p=1$a$b"} {
		if _, err := CheckPassword("x", h); err == nil {
			t.Errorf("CheckPassword(%q) expected error", h)
		}
		if !NeedsRehash(h) {
			t.Errorf("NeedsRehash(%q) = false, want true", h)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil || err.Error() != "Password should be at least 6 characters" {
		t.Errorf("ValidatePassword(short) = %v", err)
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("ValidatePassword(ok) = %v", err)
	}
}
