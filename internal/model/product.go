// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Product is a wellness product shown in the showcase section.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"image_url"`
	VideoURL    *string   `json:"video_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordID returns the product ID.
func (p Product) RecordID() string { return p.ID }

// ProductInput holds the fields accepted when creating a product.
type ProductInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	VideoURL    *string `json:"video_url,omitempty"`
}

// Normalize trims text fields and drops blank optional values.
func (in ProductInput) Normalize() ProductInput {
	return ProductInput{
		Title:       trimmedValue(in.Title),
		Description: optionalText(in.Description),
		ImageURL:    optionalText(in.ImageURL),
		VideoURL:    optionalText(in.VideoURL),
	}
}

// Validate checks required fields.
func (in ProductInput) Validate() error {
	return requireText("title", "Title", in.Title)
}

// ProductPatch is a partial product update; nil fields are left untouched.
type ProductPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	VideoURL    *string `json:"video_url,omitempty"`
}

// Normalize trims the text fields that are present.
func (p ProductPatch) Normalize() ProductPatch {
	return ProductPatch{
		Title:       trimmed(p.Title),
		Description: trimmed(p.Description),
		ImageURL:    trimmed(p.ImageURL),
		VideoURL:    trimmed(p.VideoURL),
	}
}

// Validate rejects a blank title when the title is being changed.
func (p ProductPatch) Validate() error {
	if p.Title != nil {
		return requireText("title", "Title", *p.Title)
	}
	return nil
}
