// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package onnx

import (
	"github.com/sugarme/tokenizer"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	Truncate    = truncate
	MeanPool    = meanPool
	L2Normalize = l2Normalize
)

// FakeSession counts calls in place of an ONNX Runtime session.
type FakeSession struct {
	Runs      int
	Destroyed int
}

func (f *FakeSession) Run(_, _ []ort.Value) error {
	f.Runs++
	return nil
}

func (f *FakeSession) Destroy() error {
	f.Destroyed++
	return nil
}

// SetLoader replaces the model loader. open returns the session to install
// or an error.
func SetLoader(e *Embedder, open func() (*FakeSession, error)) {
	e.open = func(Config) (*tokenizer.Tokenizer, session, error) {
		s, err := open()
		if err != nil {
			return nil, nil, err
		}
		return nil, s, nil
	}
}

// Load runs the lazy model load.
func Load(e *Embedder) error {
	_, err := e.ready()
	return err
}
