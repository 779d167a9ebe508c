// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/backend/local"
	"github.com/olegiv/wellness-site/internal/handler"
	"github.com/olegiv/wellness-site/internal/metrics"
	"github.com/olegiv/wellness-site/internal/middleware"
)

const (
	requestTimeout = 30 * time.Second
	uploadTimeout  = 10 * time.Minute
)

// routes builds the HTTP router.
func (a *app) routes() http.Handler {
	authHandler := handler.NewAuthHandler(handler.AuthDeps{
		Manager:         a.auth,
		NewClient:       func() auth.Client { return a.service.NewClient(nil) },
		Sessions:        a.sessions,
		LoginProtection: a.loginProtection,
		Recorder:        a.metrics,
		Logger:          a.logger,
	})
	contentHandler := handler.NewContentHandler(handler.ContentDeps{
		Settings:     a.settings,
		Products:     a.products,
		Testimonials: a.testimonials,
		Videos:       a.videos,
		Logger:       a.logger,
	})
	healthHandler := handler.NewHealthHandler(a.db, a.client, a.auth, a.version)
	jobsHandler := handler.NewJobsHandler(a.scheduler, a.logger)

	csrfMiddleware := middleware.CSRF(middleware.DefaultCSRFConfig([]byte(a.cfg.SessionSecret), a.cfg.IsDevelopment()))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(a.cfg.IsDevelopment())))

	// Probes and metrics skip the session store.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/health", healthHandler.Health)
		r.Get("/health/live", healthHandler.Liveness)
		r.Get("/health/ready", healthHandler.Readiness)
		if a.cfg.MetricsEnabled {
			r.Handle("/metrics", metrics.Handler(a.registry))
		}
	})

	r.Handle(local.PublicObjectPrefix+"*", a.service.ObjectHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.sessions.LoadAndSave)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/site-info", contentHandler.SiteInfo)
			r.Get("/products", contentHandler.ListProducts)
			r.Get("/products/{id}", contentHandler.GetProduct)
			r.Get("/testimonials", contentHandler.ListTestimonials)
			r.Get("/videos", contentHandler.ListVideos)
			r.Get("/videos/{id}", contentHandler.GetVideo)
			r.Get("/auth/session", authHandler.Session)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(csrfMiddleware)
			r.Post("/signup", authHandler.SignUp)
			r.With(a.loginProtection.Middleware()).Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(csrfMiddleware)
			r.Use(middleware.RequireAdmin(a.sessions, a.auth))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/state", contentHandler.State(a.auth))
				r.Put("/site-info", contentHandler.UpdateSiteInfo)

				r.Post("/products", contentHandler.CreateProduct)
				r.Patch("/products/{id}", contentHandler.UpdateProduct)
				r.Delete("/products/{id}", contentHandler.DeleteProduct)

				r.Post("/testimonials", contentHandler.CreateTestimonial)
				r.Patch("/testimonials/{id}", contentHandler.UpdateTestimonial)
				r.Delete("/testimonials/{id}", contentHandler.DeleteTestimonial)

				r.Delete("/videos/{id}", contentHandler.DeleteVideo)

				r.Get("/jobs", jobsHandler.List)
			})

			// Uploads and jobs may run long.
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(uploadTimeout))
				r.Post("/videos", contentHandler.AddVideo)
				r.Patch("/videos/{id}", contentHandler.UpdateVideo)
				r.Post("/jobs/{name}/run", jobsHandler.Run)
			})
		})
	})

	return r
}
