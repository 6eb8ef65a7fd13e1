// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

//go:build windows

package config

import "log/slog"

// CheckPermissions is a no-op on Windows, which uses ACLs instead of mode
// bits.
func CheckPermissions(*slog.Logger, string, bool) bool { return false }
