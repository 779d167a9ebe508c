// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the content records managed by the site
// (products, testimonials, videos, site settings) and their input rules.
package model

// User roles. Only admins may change content.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// IsAdminRole reports whether role grants content management.
func IsAdminRole(role string) bool {
	return role == RoleAdmin
}
