// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util holds small path and network helpers.
package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a joined path escapes its base.
var ErrPathTraversal = errors.New("path traversal detected: path escapes base directory")

// SafeJoinPath joins components onto basePath and fails if the result
// leaves basePath.
func SafeJoinPath(basePath string, components ...string) (string, error) {
	full := filepath.Join(append([]string{basePath}, components...)...)

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("invalid target path: %w", err)
	}
	// The separator keeps /videos-other from matching base /videos.
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return full, nil
}

// ContainsPathTraversal reports whether path still climbs with ".." after
// cleaning, or is absolute.
func ContainsPathTraversal(path string) bool {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return true
	}
	cleaned := filepath.ToSlash(filepath.Clean(path))
	return cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../")
}
