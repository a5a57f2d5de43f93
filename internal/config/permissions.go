// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// groupOtherAccess is any permission bit for group or other.
const groupOtherAccess fs.FileMode = 0o077

// CheckPermissions warns when the config file at path is accessible to other
// users, since it may hold API keys or a database password. It reports
// whether the file is insecure. Startup continues either way.
func CheckPermissions(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	mode := info.Mode()
	if mode.Perm()&groupOtherAccess == 0 {
		return false
	}

	slog.Warn("config file has insecure permissions, credentials may be exposed to other users",
		"path", path,
		"mode", mode,
		"recommended", "0600",
	)
	return true
}
