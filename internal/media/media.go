// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media holds the rules for uploaded video files: accepted types,
// size limit, storage path naming and duration probing.
package media

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/mozillazg/go-unidecode"

	"github.com/olegiv/wellness-site/internal/model"
)

// MaxVideoSize is the largest accepted upload (100 MiB).
const MaxVideoSize = 100 * 1024 * 1024

// Validation messages.
const (
	MsgInvalidType = "Please select a valid video file (MP4, WebM, OGG, AVI, MOV)"
	MsgTooLarge    = "File size must be less than 100MB"
	MsgNoFile      = "Please select a video file to upload"
)

// AllowedMimeTypes lists accepted video media types.
var AllowedMimeTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/ogg":       true,
	"video/avi":       true,
	"video/x-msvideo": true,
	"video/msvideo":   true,
	"video/quicktime": true,
}

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".ogv":  "video/ogg",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
}

// File is a video selected for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MimeType returns the declared media type, falling back to the extension.
func (f *File) MimeType() string {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(f.Name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// ValidateFile checks type and size before anything is sent anywhere.
func ValidateFile(f *File) error {
	if f == nil || f.Body == nil {
		return model.NewValidationError("file", MsgNoFile)
	}
	if !AllowedMimeTypes[f.MimeType()] {
		return model.NewValidationError("file", MsgInvalidType)
	}
	if f.Size > MaxVideoSize {
		return model.NewValidationError("file", MsgTooLarge)
	}
	return nil
}

// LimitedBody reads a file body and fails once it runs past its limit,
// whatever size the file declared.
type LimitedBody struct {
	r     io.Reader
	limit int64
	n     int64
}

// LimitBody wraps r. A limit of zero or less means MaxVideoSize.
func LimitBody(r io.Reader, limit int64) *LimitedBody {
	if limit <= 0 {
		limit = MaxVideoSize
	}
	return &LimitedBody{r: io.LimitReader(r, limit+1), limit: limit}
}

func (b *LimitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n += int64(n)
	if b.n > b.limit {
		return n, model.NewValidationError("file", MsgTooLarge)
	}
	return n, err
}

// Exceeded reports whether the body was longer than the limit.
func (b *LimitedBody) Exceeded() bool {
	return b.n > b.limit
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeName transliterates name to ASCII and replaces every character
// other than letters, digits, '.' and '-' with '_'.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	clean := unsafeChars.ReplaceAllString(unidecode.Unidecode(base), "_")
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "video"
	}
	return clean
}

// StoragePath builds a collision-resistant object path from the upload
// time and the original file name.
func StoragePath(now time.Time, name string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeName(name))
}

// ProbeDuration reads the playable duration from MP4/MOV metadata.
func ProbeDuration(r io.ReadSeeker) (time.Duration, error) {
	info, err := mp4.Probe(r)
	if err != nil {
		return 0, fmt.Errorf("probing video: %w", err)
	}
	if info.Timescale == 0 {
		return 0, fmt.Errorf("probing video: missing timescale")
	}
	secs := float64(info.Duration) / float64(info.Timescale)
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatDuration renders d as minutes:seconds with zero-padded seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// DetectDuration probes f when its body can seek and rewinds it
// afterwards. It reports false when the duration cannot be determined.
func DetectDuration(f *File) (string, bool) {
	rs, ok := f.Body.(io.ReadSeeker)
	if !ok {
		return "", false
	}
	switch f.MimeType() {
	case "video/mp4", "video/quicktime":
	default:
		return "", false
	}
	d, err := ProbeDuration(rs)
	if _, serr := rs.Seek(0, io.SeekStart); serr != nil {
		return "", false
	}
	if err != nil || d <= 0 {
		return "", false
	}
	return FormatDuration(d), true
}
