// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package secrets

import (
	"errors"
	"slices"
	"strings"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexKey holds the newline-separated list of key names, since the
// keyring itself cannot enumerate entries.
const indexKey = ".index"

// Keyring is a Store backed by the OS keyring (Keychain, Secret Service or
// Windows Credential Manager).
type Keyring struct {
	service string
}

// NewKeyring returns a Keyring for service, or DefaultService when empty.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultService
	}
	return &Keyring{service: service}
}

// Service returns the keyring service name.
func (k *Keyring) Service() string { return k.service }

func (k *Keyring) Set(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := keyring.Set(k.service, key, value); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeSecretStoreFailure, "storing secret %s/%s", k.service, key)
	}

	keys, err := k.List()
	if err != nil {
		return err
	}
	if _, found := slices.BinarySearch(keys, key); found {
		return nil
	}
	return k.saveIndex(append(keys, key))
}

func (k *Keyring) Get(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	val, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", sageerr.Errorf(sageerr.CodeSecretNotFound, "secret %s/%s not found", k.service, key)
	}
	if err != nil {
		return "", sageerr.Wrapf(err, sageerr.CodeSecretStoreFailure, "reading secret %s/%s", k.service, key)
	}
	return val, nil
}

func (k *Keyring) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return sageerr.Errorf(sageerr.CodeSecretNotFound, "secret %s/%s not found", k.service, key)
	}
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeSecretDeleteFailure, "deleting secret %s/%s", k.service, key)
	}

	keys, err := k.List()
	if err != nil {
		return err
	}
	return k.saveIndex(slices.DeleteFunc(keys, func(s string) bool { return s == key }))
}

func (k *Keyring) List() ([]string, error) {
	raw, err := keyring.Get(k.service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeSecretListFailure, "reading key index for %s", k.service)
	}
	keys := strings.Fields(raw)
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (k *Keyring) saveIndex(keys []string) error {
	if len(keys) == 0 {
		err := keyring.Delete(k.service, indexKey)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return sageerr.Wrapf(err, sageerr.CodeSecretListFailure, "clearing key index for %s", k.service)
		}
		return nil
	}
	slices.Sort(keys)
	if err := keyring.Set(k.service, indexKey, strings.Join(keys, "\n")); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeSecretListFailure, "writing key index for %s", k.service)
	}
	return nil
}

func validKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return sageerr.New(sageerr.CodeSecretInvalidInput, "secret key must not be empty")
	case key == indexKey, strings.ContainsAny(key, " \t\n"):
		return sageerr.Errorf(sageerr.CodeSecretInvalidInput, "invalid secret key %q", key)
	}
	return nil
}
