// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"time"
)

// VideoType tells where a video's bytes live.
type VideoType string

// Video source types.
const (
	// VideoTypeURL points at an externally hosted video (e.g. a YouTube embed).
	VideoTypeURL VideoType = "url"
	// VideoTypeUpload points at an object in the videos storage bucket.
	VideoTypeUpload VideoType = "upload"
)

// Valid reports whether t is a known video type.
func (t VideoType) Valid() bool {
	return t == VideoTypeURL || t == VideoTypeUpload
}

// Video is a testimonial video.
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      VideoType `json:"type"`
	URL       string    `json:"url"`
	Duration  *string   `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID returns the video ID.
func (v Video) RecordID() string { return v.ID }

// IsUpload reports whether the video is backed by a stored object.
func (v Video) IsUpload() bool { return v.Type == VideoTypeUpload }

// VideoInput holds the fields accepted when creating a video.
// For uploads the URL is filled in after the file is stored.
type VideoInput struct {
	Title    string    `json:"title"`
	Type     VideoType `json:"type"`
	URL      string    `json:"url"`
	Duration *string   `json:"duration,omitempty"`
}

// Normalize trims text fields and defaults the type to url.
func (in VideoInput) Normalize() VideoInput {
	out := VideoInput{
		Title:    trimmedValue(in.Title),
		Type:     in.Type,
		URL:      trimmedValue(in.URL),
		Duration: optionalText(in.Duration),
	}
	if out.Type == "" {
		out.Type = VideoTypeURL
	}
	return out
}

// Validate checks required fields. A url-type video needs a valid URL.
func (in VideoInput) Validate() error {
	errs := []error{requireText("title", "Title", in.Title)}
	if !in.Type.Valid() {
		errs = append(errs, NewValidationError("type", "Video type must be %q or %q", VideoTypeURL, VideoTypeUpload))
	}
	if in.Type == VideoTypeURL || in.URL != "" {
		if in.URL == "" {
			errs = append(errs, NewValidationError("url", "Video URL is required"))
		} else {
			errs = append(errs, ValidateURL("url", in.URL))
		}
	}
	errs = append(errs, ValidateDuration(in.Duration))
	return errors.Join(errs...)
}

// VideoPatch is a partial video update.
type VideoPatch struct {
	Title    *string    `json:"title,omitempty"`
	Type     *VideoType `json:"type,omitempty"`
	URL      *string    `json:"url,omitempty"`
	Duration *string    `json:"duration,omitempty"`
}

// Normalize trims the text fields that are present.
func (p VideoPatch) Normalize() VideoPatch {
	return VideoPatch{
		Title:    trimmed(p.Title),
		Type:     p.Type,
		URL:      trimmed(p.URL),
		Duration: trimmed(p.Duration),
	}
}

// Validate checks the fields that are being changed.
func (p VideoPatch) Validate() error {
	var errs []error
	if p.Title != nil {
		errs = append(errs, requireText("title", "Title", *p.Title))
	}
	if p.Type != nil && !p.Type.Valid() {
		errs = append(errs, NewValidationError("type", "Video type must be %q or %q", VideoTypeURL, VideoTypeUpload))
	}
	if p.URL != nil {
		errs = append(errs, ValidateURL("url", *p.URL))
	}
	errs = append(errs, ValidateDuration(p.Duration))
	return errors.Join(errs...)
}
