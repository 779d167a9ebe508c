// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/middleware"
	"github.com/olegiv/wellness-site/internal/session"
	"github.com/olegiv/wellness-site/internal/testutil"
	"github.com/olegiv/wellness-site/internal/version"
)

// testEnv is a full handler stack over an embedded backend.
type testEnv struct {
	backend      *testutil.Backend
	manager      *auth.Manager
	sm           *scs.SessionManager
	settings     *content.SiteSettings
	products     *content.Products
	testimonials *content.Testimonials
	videos       *content.VideoManager
	lp           *middleware.LoginProtection
	router       http.Handler
}

func newTestEnv(t *testing.T, opts ...testutil.BackendOption) *testEnv {
	t.Helper()

	b := testutil.TestBackend(t, opts...)
	b.CreateAdmin(t, testutil.AdminEmail)
	b.CreateUser(t, testutil.UserEmail)

	client := b.Client()
	logger := testutil.TestLoggerSilent()
	m := auth.NewManager(client, logger)
	m.Initialize(context.Background())
	t.Cleanup(m.Close)

	contentOpts := content.Options{Logger: logger, Now: b.Clock.Now}
	env := &testEnv{
		backend:      b,
		manager:      m,
		sm:           session.New(b.DB, true),
		settings:     content.NewSiteSettings(client, contentOpts),
		products:     content.NewProducts(client, contentOpts),
		testimonials: content.NewTestimonials(client, contentOpts),
		videos:       content.NewVideoManager(client, client, contentOpts),
		lp:           middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig()),
	}
	t.Cleanup(env.lp.Close)

	authH := NewAuthHandler(AuthDeps{
		Manager:         m,
		NewClient:       func() auth.Client { return b.Client() },
		Sessions:        env.sm,
		LoginProtection: env.lp,
		Logger:          logger,
	})
	contentH := NewContentHandler(ContentDeps{
		Settings:     env.settings,
		Products:     env.products,
		Testimonials: env.testimonials,
		Videos:       env.videos,
		Logger:       logger,
	})
	healthH := NewHealthHandler(b.DB, client, m, version.New("v-test", "", ""))

	r := chi.NewRouter()
	r.Use(env.sm.LoadAndSave)
	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)
	r.Route("/api", func(r chi.Router) {
		r.Get("/site-info", contentH.SiteInfo)
		r.Get("/products", contentH.ListProducts)
		r.Get("/products/{id}", contentH.GetProduct)
		r.Get("/testimonials", contentH.ListTestimonials)
		r.Get("/videos", contentH.ListVideos)
		r.Get("/videos/{id}", contentH.GetVideo)

		r.Post("/auth/signup", authH.SignUp)
		r.Post("/auth/signin", authH.SignIn)
		r.Post("/auth/signout", authH.SignOut)
		r.Get("/auth/session", authH.Session)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(env.sm, m))
			r.Get("/state", contentH.State(m))
			r.Put("/site-info", contentH.UpdateSiteInfo)
			r.Post("/products", contentH.CreateProduct)
			r.Patch("/products/{id}", contentH.UpdateProduct)
			r.Delete("/products/{id}", contentH.DeleteProduct)
			r.Post("/testimonials", contentH.CreateTestimonial)
			r.Patch("/testimonials/{id}", contentH.UpdateTestimonial)
			r.Delete("/testimonials/{id}", contentH.DeleteTestimonial)
			r.Post("/videos", contentH.AddVideo)
			r.Patch("/videos/{id}", contentH.UpdateVideo)
			r.Delete("/videos/{id}", contentH.DeleteVideo)
		})
	})
	env.router = r
	return env
}

// do sends a request with an optional JSON body and session cookie.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, cookie)
}

func (e *testEnv) send(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// signIn signs email in and returns the browser session cookie.
func (e *testEnv) signIn(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": testutil.TestPassword,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	c := sessionCookie(rec)
	if c == nil {
		t.Fatal("sign in set no session cookie")
	}
	return c
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// envelope decodes a response envelope, leaving data raw.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func newRequest(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, body)
}
