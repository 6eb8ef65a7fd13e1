// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/codesage-dev/codesage/internal/logging"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("trace")
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("found matching codes", "count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "found matching codes", line["msg"])
	assert.EqualValues(t, 3, line["count"])
}

func TestNew_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", "text", &buf)
	require.NoError(t, err)

	logger.Debug("normalized input", "normalized", "chest pain")
	assert.Contains(t, buf.String(), `normalized="chest pain"`)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := logging.New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, err := logging.Setup("warn", "text", &buf)
	require.NoError(t, err)

	slog.Info("quiet")
	slog.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
