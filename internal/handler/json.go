// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers of the public site API and
// the admin content API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/model"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Response is the envelope of every API response. Exactly one of Data and
// Error is meaningful.
type Response struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// writeErrorMessage writes an error envelope.
func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Error: message})
}

// writeError maps err to a status and writes its message.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeErrorMessage(w, status, errorMessage(err))
}

// errorStatus picks the HTTP status for an error returned by a manager.
func errorStatus(err error) int {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var ce *content.ConfigurationError
	if errors.As(err, &ce) {
		return http.StatusServiceUnavailable
	}

	switch backend.CodeOf(err) {
	case backend.CodeInvalid:
		return http.StatusBadRequest
	case backend.CodeUnauthorized:
		return http.StatusUnauthorized
	case backend.CodeForbidden:
		return http.StatusForbidden
	case backend.CodeNotFound:
		return http.StatusNotFound
	case backend.CodeConflict:
		return http.StatusConflict
	case backend.CodeUnavailable:
		return http.StatusServiceUnavailable
	}

	var re *content.RemoteError
	if errors.As(err, &re) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorMessage(err error) string {
	if errorStatus(err) == http.StatusInternalServerError {
		var be *backend.Error
		if !errors.As(err, &be) {
			return "Internal server error"
		}
	}
	return err.Error()
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return model.NewValidationError("body", "Content-Type must be application/json")
		}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewValidationError("body", "Invalid request body: %s", describeDecodeError(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &syn):
		return fmt.Sprintf("malformed JSON at offset %d", syn.Offset)
	case errors.As(err, &typ):
		return fmt.Sprintf("field %q has the wrong type", typ.Field)
	case errors.As(err, &tooLarge):
		return "body too large"
	default:
		return err.Error()
	}
}
