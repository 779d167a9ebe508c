// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package markup renders admin-entered markdown to sanitized HTML.
package markup

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// sanitizer allows the safe subset of HTML for user-generated content.
var sanitizer = bluemonday.UGCPolicy()

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

// Render converts markdown source to sanitized HTML. Blank input renders
// to an empty string.
func Render(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil //nolint:gosec // sanitized above
}

// RenderPtr renders an optional field. Nil stays nil.
func RenderPtr(src *string) (*template.HTML, error) {
	if src == nil {
		return nil, nil
	}
	h, err := Render(*src)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
