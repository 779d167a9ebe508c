// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/wellness-site/internal/media"
	"github.com/olegiv/wellness-site/internal/model"
)

const (
	// multipartMemory is how much of a multipart form is held in memory;
	// the rest spills to temporary files.
	multipartMemory = 32 << 20
	// maxUploadBody allows the largest video plus form overhead.
	maxUploadBody = media.MaxVideoSize + 1<<20
)

// AddVideo handles POST /api/admin/videos. It accepts either a JSON
// VideoInput or a multipart form with fields title, type, url, duration
// and an optional file.
func (h *ContentHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var (
		in   model.VideoInput
		file *media.File
	)
	if isMultipart(r) {
		form, f, cleanup, err := parseVideoForm(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer cleanup()
		file = f
		in = model.VideoInput{
			Title:    form.Get("title"),
			Type:     model.VideoType(form.Get("type")),
			URL:      form.Get("url"),
			Duration: optionalField(form, "duration"),
		}
		if in.Type == "" && file != nil {
			in.Type = model.VideoTypeUpload
		}
	} else if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.videos.Add(r.Context(), in, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, v)
}

// UpdateVideo handles PATCH /api/admin/videos/{id}. Multipart fields that
// are absent are left unchanged.
func (h *ContentHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	var (
		patch model.VideoPatch
		file  *media.File
	)
	if isMultipart(r) {
		form, f, cleanup, err := parseVideoForm(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer cleanup()
		file = f
		patch = model.VideoPatch{
			Title:    optionalField(form, "title"),
			URL:      optionalField(form, "url"),
			Duration: optionalField(form, "duration"),
		}
		if t := optionalField(form, "type"); t != nil {
			vt := model.VideoType(*t)
			patch.Type = &vt
		}
	} else if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.videos.Update(r.Context(), chi.URLParam(r, "id"), patch, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

// DeleteVideo handles DELETE /api/admin/videos/{id}.
func (h *ContentHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.videos.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

type formValues map[string][]string

func (f formValues) Get(key string) string {
	if vs := f[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// optionalField returns nil when key is absent from the form.
func optionalField(f formValues, key string) *string {
	vs, ok := f[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

// parseVideoForm parses a multipart video form. The returned file is nil
// when no "file" part was sent. cleanup closes the file and removes any
// temporary files.
func parseVideoForm(w http.ResponseWriter, r *http.Request) (formValues, *media.File, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, func() {}, model.NewValidationError("file", media.MsgTooLarge)
		}
		return nil, nil, func() {}, model.NewValidationError("body", "Invalid form data")
	}

	form := formValues(r.MultipartForm.Value)
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return form, nil, cleanup, nil
	}
	hdr := headers[0]
	f, err := hdr.Open()
	if err != nil {
		cleanup()
		return nil, nil, func() {}, model.NewValidationError("file", "Failed to read uploaded file")
	}
	return form, fileFromHeader(hdr, f), func() {
		_ = f.Close()
		cleanup()
	}, nil
}

func fileFromHeader(hdr *multipart.FileHeader, f multipart.File) *media.File {
	return &media.File{
		Name:        strings.TrimSpace(hdr.Filename),
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}
}
