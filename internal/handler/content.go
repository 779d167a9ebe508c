// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/wellness-site/internal/auth"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/markup"
	"github.com/olegiv/wellness-site/internal/model"
)

// ContentHandler serves the site content and its admin mutations.
type ContentHandler struct {
	settings     *content.SiteSettings
	products     *content.Products
	testimonials *content.Testimonials
	videos       *content.VideoManager
	logger       *slog.Logger
}

// ContentDeps lists the managers a ContentHandler serves.
type ContentDeps struct {
	Settings     *content.SiteSettings
	Products     *content.Products
	Testimonials *content.Testimonials
	Videos       *content.VideoManager
	Logger       *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(d ContentDeps) *ContentHandler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{
		settings:     d.Settings,
		products:     d.Products,
		testimonials: d.Testimonials,
		videos:       d.Videos,
		logger:       logger.With("category", "content"),
	}
}

// ProductView is a product with its description rendered to HTML.
type ProductView struct {
	model.Product
	DescriptionHTML *template.HTML `json:"description_html"`
}

// TestimonialView is a testimonial with its quote rendered to HTML.
type TestimonialView struct {
	model.Testimonial
	QuoteHTML template.HTML `json:"quote_html"`
}

// SiteInfo handles GET /api/site-info.
func (h *ContentHandler) SiteInfo(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.settings.WithDefaults())
}

// ListProducts handles GET /api/products.
func (h *ContentHandler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	items := h.products.List()
	views := make([]ProductView, 0, len(items))
	for _, p := range items {
		views = append(views, h.productView(p))
	}
	writeData(w, http.StatusOK, views)
}

// GetProduct handles GET /api/products/{id}.
func (h *ContentHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.products.Get(chi.URLParam(r, "id"))
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	writeData(w, http.StatusOK, h.productView(p))
}

// ListTestimonials handles GET /api/testimonials.
func (h *ContentHandler) ListTestimonials(w http.ResponseWriter, _ *http.Request) {
	items := h.testimonials.List()
	views := make([]TestimonialView, 0, len(items))
	for _, t := range items {
		views = append(views, h.testimonialView(t))
	}
	writeData(w, http.StatusOK, views)
}

// ListVideos handles GET /api/videos.
func (h *ContentHandler) ListVideos(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.videos.List())
}

// GetVideo handles GET /api/videos/{id}.
func (h *ContentHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := h.videos.Get(chi.URLParam(r, "id"))
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "Video not found")
		return
	}
	writeData(w, http.StatusOK, v)
}

func (h *ContentHandler) productView(p model.Product) ProductView {
	html, err := markup.RenderPtr(p.Description)
	if err != nil {
		h.logger.Warn("failed to render product description", "product_id", p.ID, "error", err)
	}
	return ProductView{Product: p, DescriptionHTML: html}
}

func (h *ContentHandler) testimonialView(t model.Testimonial) TestimonialView {
	html, err := markup.Render(t.Quote)
	if err != nil {
		h.logger.Warn("failed to render testimonial quote", "testimonial_id", t.ID, "error", err)
	}
	return TestimonialView{Testimonial: t, QuoteHTML: html}
}

// AdminState is the admin dashboard's view of every cache.
type AdminState struct {
	Auth         auth.State                          `json:"auth"`
	SiteInfo     content.SettingsSnapshot            `json:"site_info"`
	Products     content.Snapshot[model.Product]     `json:"products"`
	Testimonials content.Snapshot[model.Testimonial] `json:"testimonials"`
	Videos       content.Snapshot[model.Video]       `json:"videos"`
}

// State returns a handler for GET /api/admin/state.
func (h *ContentHandler) State(state interface{ State() auth.State }) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, AdminState{
			Auth:         state.State(),
			SiteInfo:     h.settings.Snapshot(),
			Products:     h.products.Snapshot(),
			Testimonials: h.testimonials.Snapshot(),
			Videos:       h.videos.Snapshot(),
		})
	}
}

// UpdateSiteInfo handles PUT /api/admin/site-info. The body is a flat
// key/value object; every pair is saved.
func (h *ContentHandler) UpdateSiteInfo(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, err)
		return
	}
	if len(values) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "No settings to save")
		return
	}
	if err := h.settings.SetMany(r.Context(), values); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, h.settings.WithDefaults())
}

// CreateProduct handles POST /api/admin/products.
func (h *ContentHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	createRecord(h.products)(w, r)
}

// UpdateProduct handles PATCH /api/admin/products/{id}.
func (h *ContentHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	updateRecord(h.products)(w, r)
}

// DeleteProduct handles DELETE /api/admin/products/{id}.
func (h *ContentHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	deleteRecord(h.products)(w, r)
}

// CreateTestimonial handles POST /api/admin/testimonials.
func (h *ContentHandler) CreateTestimonial(w http.ResponseWriter, r *http.Request) {
	createRecord(h.testimonials)(w, r)
}

// UpdateTestimonial handles PATCH /api/admin/testimonials/{id}.
func (h *ContentHandler) UpdateTestimonial(w http.ResponseWriter, r *http.Request) {
	updateRecord(h.testimonials)(w, r)
}

// DeleteTestimonial handles DELETE /api/admin/testimonials/{id}.
func (h *ContentHandler) DeleteTestimonial(w http.ResponseWriter, r *http.Request) {
	deleteRecord(h.testimonials)(w, r)
}

func createRecord[T content.Record, C content.Input[C], P content.Input[P]](m *content.Manager[T, C, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in C
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, err)
			return
		}
		rec, err := m.Create(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusCreated, rec)
	}
}

func updateRecord[T content.Record, C content.Input[C], P content.Input[P]](m *content.Manager[T, C, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch P
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, err)
			return
		}
		rec, err := m.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, rec)
	}
}

func deleteRecord[T content.Record, C content.Input[C], P content.Input[P]](m *content.Manager[T, C, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := m.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	}
}
