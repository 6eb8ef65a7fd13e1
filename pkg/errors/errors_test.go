// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := sageerr.New(
		sageerr.CodeConfigValidateInvalidValue,
		"invalid embedder configuration",
		sageerr.FieldProvider("openai"),
		sageerr.Field("dimensions", 384),
	)

	require.Error(t, err)
	assert.Equal(t, sageerr.CodeConfigValidateInvalidValue, sageerr.CodeOf(err))
	assert.True(t, sageerr.HasCode(err, sageerr.CodeConfigValidateInvalidValue))

	fields := sageerr.FieldsOf(err)
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, 384, fields["dimensions"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := sageerr.Errorf(sageerr.CodeIndexMisaligned, "catalog has %d rows, index has %d", 3, 2)
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeIndexMisaligned, sageerr.CodeOf(err))
	assert.Contains(t, err.Error(), "catalog has 3 rows, index has 2")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := sageerr.Errorf(sageerr.CodeIndexStoreFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, sageerr.CodeIndexStoreFailure, sageerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such file")
	err := sageerr.Wrap(root, sageerr.CodeDatasetNotFound, "verifying artifacts", sageerr.FieldPath("data/catalog.csv"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, sageerr.IsNotFound(err))
	assert.Equal(t, "data/catalog.csv", sageerr.FieldsOf(err)["path"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, sageerr.Wrap(nil, sageerr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, sageerr.Wrapf(nil, sageerr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, sageerr.With(nil, sageerr.FieldBackend("flat")))
}

func TestWrapfFormatsAndPreservesChain(t *testing.T) {
	root := stderrors.New("connection reset")
	err := sageerr.Wrapf(root, sageerr.CodeEmbedUpstreamFailure, "calling %s model %s", "ollama", "all-minilm")

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, sageerr.IsEmbeddingUnavailable(err))
	assert.Contains(t, err.Error(), "calling ollama model all-minilm")
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := sageerr.New(sageerr.CodeIndexNotReady, "index not built")
	withCtx := sageerr.With(base, sageerr.FieldBackend("hnsw"))

	assert.Equal(t, sageerr.CodeIndexNotReady, sageerr.CodeOf(withCtx))
	assert.Equal(t, "hnsw", sageerr.FieldsOf(withCtx)["backend"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := sageerr.With(stderrors.New("something broke"), sageerr.Field("row", 7))
	assert.Equal(t, sageerr.CodeServerInternalFailure, sageerr.CodeOf(enriched))
	assert.Equal(t, 7, sageerr.FieldsOf(enriched)["row"])
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := sageerr.New(sageerr.CodeIndexStoreFailure, "oops",
		sageerr.Field("", "should-be-dropped"),
		sageerr.FieldBackend("sqlite"),
	)
	fields := sageerr.FieldsOf(err)
	assert.Equal(t, "sqlite", fields["backend"])
	assert.NotContains(t, fields, "")
}

func TestReclassify(t *testing.T) {
	t.Run("coded error is replaced and keeps its cause", func(t *testing.T) {
		inner := sageerr.New(sageerr.CodeCatalogLoadFailure, "open catalog.csv")
		err := sageerr.Reclassify(inner, sageerr.CodeSuggestResourcesMissing, "loading", sageerr.FieldPath("catalog.csv"))

		assert.Equal(t, sageerr.CodeSuggestResourcesMissing, sageerr.CodeOf(err))
		assert.Contains(t, err.Error(), "loading: open catalog.csv")
		fields := sageerr.FieldsOf(err)
		assert.Equal(t, string(sageerr.CodeCatalogLoadFailure), fields["cause"])
		assert.Equal(t, "catalog.csv", fields["path"])
	})

	t.Run("plain error is wrapped", func(t *testing.T) {
		root := stderrors.New("dial tcp: refused")
		err := sageerr.Reclassify(root, sageerr.CodeEmbedUpstreamFailure, "embedding unavailable")
		assert.ErrorIs(t, err, root)
		assert.True(t, sageerr.IsEmbeddingUnavailable(err))
	})

	t.Run("same code is returned as is", func(t *testing.T) {
		inner := sageerr.New(sageerr.CodeIndexMisaligned, "rows differ")
		assert.Equal(t, inner, sageerr.Reclassify(inner, sageerr.CodeIndexMisaligned, "ignored"))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, sageerr.Reclassify(nil, sageerr.CodeIndexMisaligned, "ignored"))
	})
}

// ---------------------------------------------------------------------------
// HasCode / CodeOf
// ---------------------------------------------------------------------------

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code sageerr.Code
		want bool
	}{
		{"matching code", sageerr.New(sageerr.CodeIndexNotReady, "x"), sageerr.CodeIndexNotReady, true},
		{"non-matching code", sageerr.New(sageerr.CodeIndexNotReady, "x"), sageerr.CodeIndexMisaligned, false},
		{"nil error", nil, sageerr.CodeIndexNotReady, false},
		{"plain stdlib error has no code", stderrors.New("plain"), sageerr.CodeServerInternalFailure, false},
		{
			name: "wrapped coded error returns innermost code",
			err: sageerr.Wrap(
				sageerr.New(sageerr.CodeEmbedUpstreamFailure, "inner"),
				sageerr.CodeServerInternalFailure, "outer",
			),
			code: sageerr.CodeEmbedUpstreamFailure,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sageerr.HasCode(tt.err, tt.code))
		})
	}
}

func TestCodeOfNilAndPlain(t *testing.T) {
	assert.Equal(t, sageerr.Code(""), sageerr.CodeOf(nil))
	assert.Equal(t, sageerr.Code(""), sageerr.CodeOf(stderrors.New("plain")))
	assert.Nil(t, sageerr.FieldsOf(nil))
	assert.Nil(t, sageerr.FieldsOf(stderrors.New("plain")))
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	mid := fmt.Errorf("mid: %w", sentinel)
	outer := sageerr.Wrap(mid, sageerr.CodeServerInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   sageerr.Code
		status int
		check  func(error) bool
	}{
		{name: "invalid input", code: sageerr.CodeSuggestInputInvalid, status: 400, check: sageerr.IsInvalidInput},
		{name: "invalid query", code: sageerr.CodeIndexQueryInvalid, status: 400, check: sageerr.IsInvalidInput},
		{name: "invalid catalog format", code: sageerr.CodeCatalogFormatInvalid, status: 400, check: sageerr.IsInvalidInput},
		{name: "embedding unavailable", code: sageerr.CodeEmbedUpstreamFailure, status: 503, check: sageerr.IsEmbeddingUnavailable},
		{name: "index not ready", code: sageerr.CodeIndexNotReady, status: 503, check: sageerr.IsIndexNotReady},
		{name: "resources not ready", code: sageerr.CodeSuggestResourcesMissing, status: 503, check: sageerr.IsIndexNotReady},
		{name: "misaligned", code: sageerr.CodeIndexMisaligned, status: 500, check: sageerr.IsDataMisalignment},
		{name: "not found", code: sageerr.CodeServerEntityNotFound, status: 404, check: sageerr.IsNotFound},
		{name: "upstream index failure", code: sageerr.CodeIndexUpstreamFailure, status: 502, check: sageerr.IsUpstreamFailure},
		{name: "internal", code: sageerr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !sageerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sageerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, sageerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationOnNilAndPlain(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain")} {
		assert.False(t, sageerr.IsNotFound(err))
		assert.False(t, sageerr.IsInvalidInput(err))
		assert.False(t, sageerr.IsTimeout(err))
		assert.False(t, sageerr.IsUpstreamFailure(err))
		assert.False(t, sageerr.IsEmbeddingUnavailable(err))
		assert.False(t, sageerr.IsIndexNotReady(err))
		assert.False(t, sageerr.IsDataMisalignment(err))
		assert.Equal(t, http.StatusInternalServerError, sageerr.HTTPStatus(err))
	}
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := sageerr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, sageerr.CodeServerInternalFailure, sageerr.CodeOf(joined))
}
