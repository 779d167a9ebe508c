// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCSRFKey = []byte("12345678901234567890123456789012")

func TestDefaultCSRFConfig(t *testing.T) {
	dev := DefaultCSRFConfig(testCSRFKey, true)
	if len(dev.TrustedOrigins) != 2 {
		t.Errorf("expected 2 TrustedOrigins in dev mode, got %d", len(dev.TrustedOrigins))
	}
	for _, origin := range dev.TrustedOrigins {
		if strings.HasPrefix(origin, "http") || !strings.Contains(origin, ":") {
			t.Errorf("TrustedOrigin %q should be host:port", origin)
		}
	}

	prod := DefaultCSRFConfig(testCSRFKey, false)
	if len(prod.TrustedOrigins) != 0 {
		t.Errorf("expected no TrustedOrigins in production, got %d", len(prod.TrustedOrigins))
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRF_FetchMetadata(t *testing.T) {
	h := CSRF(DefaultCSRFConfig(testCSRFKey, false))(okHandler())

	tests := []struct {
		name      string
		method    string
		fetchSite string
		want      int
	}{
		{"same-origin post", http.MethodPost, "same-origin", http.StatusOK},
		{"cross-site post", http.MethodPost, "cross-site", http.StatusForbidden},
		{"cross-site get", http.MethodGet, "cross-site", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "https://example.com/api/admin/products", nil)
			req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			req.Header.Set("Origin", "https://evil.example")
			if tt.fetchSite == "same-origin" {
				req.Header.Set("Origin", "https://example.com")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden && !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestSkipCSRF(t *testing.T) {
	h := SkipCSRF("/api/auth/refresh")(CSRF(DefaultCSRFConfig(testCSRFKey, false))(okHandler()))

	for path, want := range map[string]int{
		"/api/auth/refresh":      http.StatusOK,
		"/api/admin/videos/abc1": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "https://example.com"+path, nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, want)
		}
	}
}
