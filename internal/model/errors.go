// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError reports input rejected before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// requireText rejects empty and whitespace-only values.
func requireText(field, label, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "%s is required", label)
	}
	return nil
}

// optionalText trims the value and drops it when blank.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// trimmed returns a pointer to the trimmed value, or nil for nil.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// ValidateURL performs a syntactic check: absolute http(s) URL with a host.
func ValidateURL(field, raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError(field, "Please enter a valid URL")
	}
	return nil
}

var durationPattern = regexp.MustCompile(`^\d{1,4}:[0-5]\d$`)

// ValidateDuration checks the optional MM:SS display duration.
func ValidateDuration(d *string) error {
	if d == nil || *d == "" {
		return nil
	}
	if !durationPattern.MatchString(*d) {
		return NewValidationError("duration", "Duration must use the MM:SS format")
	}
	return nil
}

func trimmedValue(s string) string {
	return strings.TrimSpace(s)
}
