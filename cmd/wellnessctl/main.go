// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command wellnessctl administers a wellness site database: migrations,
// accounts and maintenance.
package main

import (
	"fmt"
	"os"

	"github.com/olegiv/wellness-site/internal/version"
)

// Set at build time via -ldflags.
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	root := newRootCmd(version.New(appVersion, appGitCommit, appBuildTime))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
