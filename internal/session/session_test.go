// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/wellness-site/internal/testutil"
)

func TestNew_DevMode(t *testing.T) {
	sm := New(testutil.TestDB(t), true)

	if sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = false in dev mode")
	}
	if sm.Cookie.Name != CookieName {
		t.Errorf("Cookie.Name = %q, want %q", sm.Cookie.Name, CookieName)
	}
}

func TestNew_ProductionMode(t *testing.T) {
	sm := New(testutil.TestDB(t), false)

	if !sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = true in production mode")
	}
	if sm.Cookie.Path != "/" {
		t.Errorf("expected Cookie.Path = '/', got %q", sm.Cookie.Path)
	}
}

func TestNew_SessionSettings(t *testing.T) {
	sm := New(testutil.TestDB(t), true)

	if sm.Lifetime != 24*time.Hour {
		t.Errorf("Lifetime = %v, want 24h", sm.Lifetime)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("expected Cookie.HttpOnly = true")
	}
	if sm.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite = Lax, got %v", sm.Cookie.SameSite)
	}
}

func TestSignInPersistsAcrossRequests(t *testing.T) {
	sm := New(testutil.TestDB(t), true)

	mux := http.NewServeMux()
	mux.HandleFunc("/in", func(w http.ResponseWriter, r *http.Request) {
		if err := SignIn(r.Context(), sm, "user-1", "admin@example.com", true); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/who", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if uid := UserID(ctx, sm); uid != "" {
			_, _ = fmt.Fprintf(w, "%s %s %t", uid, Email(ctx, sm), IsAdmin(ctx, sm))
		}
	})
	mux.HandleFunc("/out", func(w http.ResponseWriter, r *http.Request) {
		if err := SignOut(r.Context(), sm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	h := sm.LoadAndSave(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/in", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	who := func() string {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Body.String()
	}
	if got := who(); got != "user-1 admin@example.com true" {
		t.Fatalf("session = %q, want user-1 admin@example.com true", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/out", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := who(); got != "" {
		t.Errorf("session after sign-out = %q, want empty", got)
	}
}
