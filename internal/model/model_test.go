// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"testing"
)

func ptr(s string) *string { return &s }

func TestVideoInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      VideoInput
		wantErr string
	}{
		{"url video", VideoInput{Title: "Story", URL: "https://www.youtube.com/embed/abc"}, ""},
		{"upload without url", VideoInput{Title: "Story", Type: VideoTypeUpload}, ""},
		{"missing title", VideoInput{Title: "  ", URL: "https://example.com/v"}, "Title is required"},
		{"missing url", VideoInput{Title: "Story"}, "Video URL is required"},
		{"relative url", VideoInput{Title: "Story", URL: "/videos/a.mp4"}, "Please enter a valid URL"},
		{"ftp url", VideoInput{Title: "Story", URL: "ftp://example.com/a.mp4"}, "Please enter a valid URL"},
		{"unknown type", VideoInput{Title: "Story", Type: "stream"}, "Video type must be"},
		{"bad duration", VideoInput{Title: "Story", URL: "https://example.com/v", Duration: ptr("90s")}, "MM:SS"},
		{"good duration", VideoInput{Title: "Story", URL: "https://example.com/v", Duration: ptr("12:05")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Normalize().Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error %T is not a ValidationError", err)
			}
		})
	}
}

func TestVideoInputNormalize(t *testing.T) {
	in := VideoInput{Title: "  Story  ", URL: " https://example.com/v ", Duration: ptr("  ")}.Normalize()
	if in.Title != "Story" || in.URL != "https://example.com/v" {
		t.Errorf("Normalize() = %+v", in)
	}
	if in.Type != VideoTypeURL {
		t.Errorf("Type = %q, want %q", in.Type, VideoTypeURL)
	}
	if in.Duration != nil {
		t.Errorf("Duration = %q, want nil", *in.Duration)
	}
}

func TestVideoPatchValidate(t *testing.T) {
	if err := (VideoPatch{}).Validate(); err != nil {
		t.Errorf("empty patch: %v", err)
	}
	if err := (VideoPatch{Title: ptr(" ")}).Normalize().Validate(); err == nil {
		t.Error("blank title accepted")
	}
	bad := VideoType("stream")
	if err := (VideoPatch{Type: &bad}).Validate(); err == nil {
		t.Error("unknown type accepted")
	}
	if err := (VideoPatch{URL: ptr("https://example.com/x")}).Validate(); err != nil {
		t.Errorf("valid url rejected: %v", err)
	}
}

func TestProductAndTestimonialInputs(t *testing.T) {
	if err := (ProductInput{Title: "Tea"}).Normalize().Validate(); err != nil {
		t.Errorf("product: %v", err)
	}
	if err := (ProductInput{Title: "   "}).Normalize().Validate(); err == nil {
		t.Error("blank product title accepted")
	}
	p := ProductInput{Title: "Tea", Description: ptr("  ")}.Normalize()
	if p.Description != nil {
		t.Error("blank description kept")
	}

	if err := (TestimonialInput{Name: "Ada", Quote: "Great"}).Normalize().Validate(); err != nil {
		t.Errorf("testimonial: %v", err)
	}
	err := (TestimonialInput{}).Normalize().Validate()
	if err == nil || !strings.Contains(err.Error(), "Name is required") || !strings.Contains(err.Error(), "Quote is required") {
		t.Errorf("empty testimonial: %v", err)
	}
}

func TestSettingKeyAndValue(t *testing.T) {
	if err := ValidateSettingKey("hero_headline"); err != nil {
		t.Errorf("valid key: %v", err)
	}
	if err := ValidateSettingKey(" "); err == nil {
		t.Error("blank key accepted")
	}
	if err := ValidateSettingKey(strings.Repeat("k", MaxSettingKeyLength+1)); err == nil {
		t.Error("long key accepted")
	}

	// "e" followed by a combining acute accent composes to a single rune.
	if got := NormalizeSettingValue("  Cafe\u0301 "); got != "Caf\u00e9" {
		t.Errorf("NormalizeSettingValue = %q", got)
	}
}

func TestDefaultSettingsCoverSections(t *testing.T) {
	defaults := DefaultSettings()
	for _, s := range DefaultSections {
		for _, d := range s.Defaults {
			if defaults[d.Key] != d.Value {
				t.Errorf("DefaultSettings()[%q] = %q, want %q", d.Key, defaults[d.Key], d.Value)
			}
		}
	}
}
