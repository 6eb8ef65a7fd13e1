// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package secrets_test

import (
	"testing"

	"github.com/codesage-dev/codesage/internal/secrets"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func init() {
	keyring.MockInit()
}

func TestKeyring_SetGet(t *testing.T) {
	ks := secrets.NewKeyring("test-set-get")

	require.NoError(t, ks.Set("openai-api-key", "sk-123"))
	got, err := ks.Get("openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", got)
}

func TestKeyring_DefaultService(t *testing.T) {
	assert.Equal(t, secrets.DefaultService, secrets.NewKeyring("").Service())
}

func TestKeyring_GetMissing(t *testing.T) {
	_, err := secrets.NewKeyring("test-missing").Get("nothing")
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeSecretNotFound))
	assert.True(t, sageerr.IsNotFound(err))
}

func TestKeyring_ListIsSortedAndDeduplicated(t *testing.T) {
	ks := secrets.NewKeyring("test-list")

	keys, err := ks.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Set("zeta", "1"))
	require.NoError(t, ks.Set("alpha", "2"))
	require.NoError(t, ks.Set("zeta", "3"))

	keys, err = ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, keys)
}

func TestKeyring_Delete(t *testing.T) {
	ks := secrets.NewKeyring("test-delete")
	require.NoError(t, ks.Set("a", "1"))
	require.NoError(t, ks.Set("b", "2"))

	require.NoError(t, ks.Delete("a"))
	keys, err := ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	err = ks.Delete("a")
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeSecretNotFound))

	require.NoError(t, ks.Delete("b"))
	keys, err = ks.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyring_InvalidKeys(t *testing.T) {
	ks := secrets.NewKeyring("test-invalid")
	for _, key := range []string{"", "  ", ".index", "has space"} {
		err := ks.Set(key, "v")
		require.Error(t, err, "key %q", key)
		assert.True(t, sageerr.IsInvalidInput(err), "key %q", key)
	}
}
