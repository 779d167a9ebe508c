// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SiteSetting is one piece of editable marketing copy.
type SiteSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MaxSettingKeyLength bounds setting keys.
const MaxSettingKeyLength = 100

// ValidateSettingKey rejects blank and oversized keys.
func ValidateSettingKey(key string) error {
	if err := requireText("key", "Key", key); err != nil {
		return err
	}
	if len(key) > MaxSettingKeyLength {
		return NewValidationError("key", "Key must be at most %d characters", MaxSettingKeyLength)
	}
	return nil
}

// NormalizeSettingValue composes unicode text (NFC) and strips surrounding space.
func NormalizeSettingValue(value string) string {
	return strings.TrimSpace(norm.NFC.String(value))
}

// SettingSection groups the editable keys of one page section with their defaults.
type SettingSection struct {
	ID       string
	Name     string
	Defaults []SiteSetting
}

// DefaultSections lists the editable page sections and the copy shown when
// a key has never been saved.
var DefaultSections = []SettingSection{
	{
		ID:   "hero",
		Name: "Hero Section",
		Defaults: []SiteSetting{
			{"hero_headline", "Transform Your Health with Quantum Healing Technology"},
			{"hero_subheadline", "Discover Natural Healing Solutions That Actually Work"},
			{"hero_description", "Join thousands of Nigerians who have transformed their health using proven quantum healing methods. Limited time offer - Get started today!"},
			{"hero_cta_text", "Get Your Free Consultation Now"},
			{"hero_background_image", "https://images.unsplash.com/photo-1518495973542-4542c06a5843?q=80&w=2000"},
		},
	},
	{
		ID:   "intro",
		Name: "Intro Section",
		Defaults: []SiteSetting{
			{"intro_headline", "Why Quantum Healing Works"},
			{"intro_subheadline", "Science-Based Natural Solutions"},
			{"intro_description", "Our quantum healing technology has helped over 10,000 Nigerians overcome chronic health challenges. Using advanced bioenergetic principles, we address the root cause of illness at the cellular level."},
		},
	},
	{
		ID:   "video",
		Name: "Video Section",
		Defaults: []SiteSetting{
			{"video_headline", "Watch Real Transformation Stories"},
			{"video_description", "See how quantum healing has changed lives across Nigeria. Watch testimonials from real people who experienced remarkable health improvements."},
		},
	},
	{
		ID:   "cta",
		Name: "Call to Action",
		Defaults: []SiteSetting{
			{"cta_headline", "Ready to Transform Your Health?"},
			{"cta_subheadline", "Join Thousands Who Have Already Experienced the Power of Quantum Healing"},
			{"cta_description", "Don't let poor health control your life any longer. Take the first step towards vibrant health with our proven quantum healing system."},
			{"cta_button_text", "Start Your Healing Journey Today"},
			{"cta_phone_text", "Or Call Us: +234 803 123 4567"},
		},
	},
	{
		ID:   "contact",
		Name: "Contact Info",
		Defaults: []SiteSetting{
			{"contact_headline", "Get in Touch"},
			{"contact_description", "Ready to start your healing journey? Contact us today for a free consultation."},
			{"contact_email", "info@quantumhealth.ng"},
			{"contact_phone", "+234 803 123 4567"},
			{"contact_whatsapp_link", "https://wa.me/2348031234567"},
			{"contact_address", "123 Health Street, Victoria Island, Lagos, Nigeria"},
		},
	},
}

// DefaultSettings flattens DefaultSections into a key/value map.
func DefaultSettings() map[string]string {
	out := make(map[string]string)
	for _, s := range DefaultSections {
		for _, d := range s.Defaults {
			out[d.Key] = d.Value
		}
	}
	return out
}
