// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

//go:build !windows

package config

import (
	"log/slog"
	"os"
)

// CheckPermissions warns when the config file at path can be read by group
// or other users while it holds an inline embedder API key. It reports
// whether a warning was logged.
func CheckPermissions(logger *slog.Logger, path string, inlineSecret bool) bool {
	if path == "" || !inlineSecret {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}
	if info.Mode().Perm()&0o044 == 0 {
		return false
	}
	logger.Warn("config file holds an API key and is readable by other users; use keyring:// or chmod 600",
		"path", path, "mode", info.Mode().Perm())
	return true
}
