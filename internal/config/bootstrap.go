// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// DefaultYAML is the commented configuration written on first run.
//
//go:embed codesage.yaml.default
var DefaultYAML []byte

// DefaultPath returns ~/.config/codesage/codesage.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "codesage", "codesage.yaml"), nil
}

// Bootstrap writes DefaultYAML to path unless a file already exists there.
// It returns whether a file was written. Failures are logged at debug level
// and are never fatal.
func Bootstrap(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return false
	}
	if err := os.WriteFile(path, DefaultYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return false
	}
	slog.Info("created default config", "path", path)
	return true
}
