// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"fmt"
	"os"

	_ "github.com/codesage-dev/codesage/internal/embed/google"
	_ "github.com/codesage-dev/codesage/internal/embed/ollama"
	_ "github.com/codesage-dev/codesage/internal/embed/onnx"
	_ "github.com/codesage-dev/codesage/internal/embed/openai"
	_ "github.com/codesage-dev/codesage/internal/index/qdrant"
	_ "github.com/codesage-dev/codesage/internal/index/sqlitevec"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
