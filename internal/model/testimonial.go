// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"time"
)

// Testimonial is a customer quote.
type Testimonial struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quote     string    `json:"quote"`
	PhotoURL  *string   `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID returns the testimonial ID.
func (t Testimonial) RecordID() string { return t.ID }

// TestimonialInput holds the fields accepted when creating a testimonial.
type TestimonialInput struct {
	Name     string  `json:"name"`
	Quote    string  `json:"quote"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// Normalize trims text fields and drops a blank photo URL.
func (in TestimonialInput) Normalize() TestimonialInput {
	return TestimonialInput{
		Name:     trimmedValue(in.Name),
		Quote:    trimmedValue(in.Quote),
		PhotoURL: optionalText(in.PhotoURL),
	}
}

// Validate checks required fields.
func (in TestimonialInput) Validate() error {
	return errors.Join(
		requireText("name", "Name", in.Name),
		requireText("quote", "Quote", in.Quote),
	)
}

// TestimonialPatch is a partial testimonial update.
type TestimonialPatch struct {
	Name     *string `json:"name,omitempty"`
	Quote    *string `json:"quote,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// Normalize trims the text fields that are present.
func (p TestimonialPatch) Normalize() TestimonialPatch {
	return TestimonialPatch{
		Name:     trimmed(p.Name),
		Quote:    trimmed(p.Quote),
		PhotoURL: trimmed(p.PhotoURL),
	}
}

// Validate rejects blanking a required field.
func (p TestimonialPatch) Validate() error {
	var errs []error
	if p.Name != nil {
		errs = append(errs, requireText("name", "Name", *p.Name))
	}
	if p.Quote != nil {
		errs = append(errs, requireText("quote", "Quote", *p.Quote))
	}
	return errors.Join(errs...)
}
