// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCatalog = `code,description
A219,"Tularemia, unspecified"
R10,Abdominal and pelvic pain
R1010,"Upper abdominal pain, unspecified"
J45,Asthma
`

// testEnv is an isolated home and data directory with a config file that
// uses the hash embedder, so commands run without network or model files.
type testEnv struct {
	home    string
	dataDir string
	config  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dataDir := filepath.Join(home, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "catalog.csv"), []byte(testCatalog), 0o600))

	cfg := strings.Join([]string{
		"data:",
		"  dir: " + dataDir,
		"  embeddings: embeddings.msgpack",
		"embedder:",
		"  provider: hash",
		"  dimensions: 32",
		"  cache_size: 0",
		"logging:",
		"  level: error",
		"",
	}, "\n")
	path := filepath.Join(home, "codesage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return testEnv{home: home, dataDir: dataDir, config: path}
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.bootstrap = false
	return runApp(t, a, args...)
}

func runApp(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// buildIndex writes the embedding matrix for env's catalog.
func buildIndex(t *testing.T, env testEnv) {
	t.Helper()
	_, err := run(t, "--config", env.config, "index", "build")
	require.NoError(t, err)
}
