// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope matches the API's {"data": ..., "error": ...} shape.
type errorEnvelope struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

// WriteError writes a JSON error envelope with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: message})
}
