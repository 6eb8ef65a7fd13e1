// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package secrets

import (
	"strings"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/spf13/viper"
)

const scheme = "keyring://"

// Ref is a parsed keyring://service/key reference.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string { return scheme + r.Service + "/" + r.Key }

// IsRef reports whether value looks like a keyring reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, sageerr.Errorf(sageerr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, sageerr.Errorf(sageerr.CodeSecretInvalidInput,
			"malformed keyring reference %q, want keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// Opener returns the Store for a keyring service.
type Opener func(service string) Store

// KeyringOpener opens OS keyring stores.
func KeyringOpener(service string) Store { return NewKeyring(service) }

// Resolve returns value unchanged unless it is a keyring reference, in which
// case the referenced secret is returned.
func Resolve(open Opener, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := open(ref.Service).Get(ref.Key)
	if err != nil {
		return "", sageerr.Reclassify(err, sageerr.CodeSecretResolveFailure, "resolving "+ref.String())
	}
	return secret, nil
}

// ResolveViper replaces every keyring reference among v's string values
// with the secret it names. It returns the joined resolution failures; keys
// that fail keep their reference so the caller can decide whether the value
// is needed at all.
func ResolveViper(v *viper.Viper, open Opener) error {
	var errs []error
	for _, key := range v.AllKeys() {
		raw, ok := v.Get(key).(string)
		if !ok || !IsRef(raw) {
			continue
		}
		secret, err := Resolve(open, raw)
		if err != nil {
			errs = append(errs, sageerr.With(err, sageerr.Field("config_key", key)))
			continue
		}
		v.Set(key, secret)
	}
	if len(errs) == 0 {
		return nil
	}
	return sageerr.Join(errs...)
}
