// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)
	assert.Contains(t, string(spec), "3.1")
	for _, path := range []string{"/health", "/readyz", "/api/v1/suggest", "/api/v1/codes", "/api/v1/codes/{code}", "/api/v1/status"} {
		assert.Contains(t, string(spec), path)
	}
}

func TestGenerateSpec_ValidJSON(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.Contains(t, doc, "openapi")
	assert.Contains(t, doc, "paths")
}
