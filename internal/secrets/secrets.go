// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package secrets keeps embedder credentials in the OS keyring and resolves
// keyring:// references found in configuration.
package secrets

// DefaultService is the keyring service codesage stores its secrets under.
const DefaultService = "codesage"

// Store is a named-secret store scoped to one service.
type Store interface {
	Set(key, value string) error
	// Get fails with CodeSecretNotFound when key is absent.
	Get(key string) (string, error)
	Delete(key string) error
	// List returns stored key names in sorted order.
	List() ([]string, error)
}
