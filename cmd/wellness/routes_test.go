// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/cache"
	"github.com/olegiv/wellness-site/internal/config"
	"github.com/olegiv/wellness-site/internal/scheduler"
	"github.com/olegiv/wellness-site/internal/session"
	"github.com/olegiv/wellness-site/internal/testutil"
	"github.com/olegiv/wellness-site/internal/version"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DBPath:                 filepath.Join(dir, "wellness.db"),
		StorageDir:             filepath.Join(dir, "storage"),
		CredentialsFile:        filepath.Join(dir, "credentials.json"),
		SessionSecret:          "k7Qp2vX9mR4tW8zB1nC6yH3jL5sD0fGa",
		JWTSecret:              "Z3xV8bN1mQ6wE4rT9yU2iO7pA5sD0fGh",
		ServerHost:             "localhost",
		ServerPort:             8080,
		Env:                    "development",
		LogLevel:               "error",
		AccessTokenTTL:         time.Hour,
		RefreshTokenTTL:        24 * time.Hour,
		ContentRefreshSchedule: config.ScheduleOff,
		SessionRefreshSchedule: config.ScheduleOff,
		SweepSchedule:          config.ScheduleOff,
		PurgeSchedule:          config.ScheduleOff,
		OrphanMinAge:           time.Hour,
		AdminEmail:             testutil.AdminEmail,
		AdminPassword:          testutil.TestPassword,
		MetricsEnabled:         true,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*app, http.Handler) {
	t.Helper()
	a, err := newApp(context.Background(), cfg, io.Discard, version.New("v-test", "abc", ""))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, a.routes()
}

func serve(h http.Handler, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func signInAdmin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	body := `{"email":"` + testutil.AdminEmail + `","password":"` + testutil.TestPassword + `"}`
	rec := serve(h, jsonRequest(http.MethodPost, "/api/auth/signin", body), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestRoutesHealth(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "v-test")
	assert.NotEmpty(t, rec.Header().Get("X-Content-Type-Options"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/health/ready", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesPublicContent(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	for _, path := range []string{"/api/site-info", "/api/products", "/api/testimonials", "/api/videos"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, path, nil), nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/products/missing", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesAdminRequiresSignIn(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, jsonRequest(http.MethodPost, "/api/admin/products", `{"title":"Tea"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutesCrossSiteRejected(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))
	cookie := signInAdmin(t, h)

	req := jsonRequest(http.MethodPost, "/api/admin/products", `{"title":"Tea"}`)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := serve(h, req, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSRF")
}

func TestRoutesAdminCreatesProduct(t *testing.T) {
	a, h := newTestApp(t, testConfig(t))
	cookie := signInAdmin(t, h)

	req := jsonRequest(http.MethodPost, "/api/admin/products", `{"title":"Calm Tea","description":"Loose leaf"}`)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := serve(h, req, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, a.products.List(), 1)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/products", nil), nil)
	assert.Contains(t, rec.Body.String(), "Calm Tea")
}

func TestRoutesVisitorKeepsAdminSignedIn(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoConfirm = true
	a, h := newTestApp(t, cfg)
	admin := signInAdmin(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/admin/state", nil), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := `{"email":"visitor@example.com","password":"` + testutil.TestPassword + `"}`
	rec = serve(h, jsonRequest(http.MethodPost, "/api/auth/signup", body), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Account created")

	rec = serve(h, jsonRequest(http.MethodPost, "/api/auth/signin", body), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := jsonRequest(http.MethodPost, "/api/admin/products", `{"title":"Calm Tea"}`)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec = serve(h, req, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, a.auth.User())
	assert.Equal(t, testutil.AdminEmail, a.auth.User().Email)
}

func TestRoutesJobs(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))
	cookie := signInAdmin(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data []scheduler.JobInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	names := make([]string, 0, len(resp.Data))
	for _, j := range resp.Data {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{
		scheduler.JobRefreshContent,
		scheduler.JobRefreshSession,
		scheduler.JobSweepOrphans,
		scheduler.JobPurgeSessions,
	}, names)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/admin/jobs/"+scheduler.JobRefreshContent+"/run", nil), cookie)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRoutesServesStoredObjects(t *testing.T) {
	cfg := testConfig(t)
	_, h := newTestApp(t, cfg)

	path := filepath.Join(cfg.StorageDir, backend.BucketVideos, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0o644))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/storage/v1/object/public/videos/clip.mp4", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "frames", rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/storage/v1/object/public/videos/missing.mp4", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesMetrics(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wellness_storage_orphans_removed_total")

	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	_, h = newTestApp(t, cfg)
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewAppRestoresBackendSession(t *testing.T) {
	cfg := testConfig(t)
	a, h := newTestApp(t, cfg)
	signInAdmin(t, h)
	require.NotNil(t, a.auth.User())
	a.Close()

	b, _ := newTestApp(t, cfg)
	require.NotNil(t, b.auth.User())
	assert.True(t, b.auth.IsAdmin())
}

func TestNewAppMemoryCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.CredentialsFile = config.Off
	a, h := newTestApp(t, cfg)
	require.IsType(t, &cache.Memory{}, a.cache)

	signInAdmin(t, h)
	require.NotNil(t, a.auth.User())
	a.Close()

	b, _ := newTestApp(t, cfg)
	assert.Nil(t, b.auth.User(), "memory credentials outlived the process")
}
