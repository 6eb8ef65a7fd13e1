// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package onnx runs a sentence-transformer model (all-MiniLM-L6-v2 by
// default) locally through ONNX Runtime. Token embeddings are mean pooled
// over the attention mask and L2 normalised.
package onnx

import (
	"context"
	"math"
	"os"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/codesage-dev/codesage/internal/embed"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

const (
	DefaultDimensions = 384
	DefaultMaxSeqLen  = 256
	DefaultModelName  = "all-MiniLM-L6-v2"
)

var (
	inputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames = []string{"last_hidden_state"}
)

// ONNX Runtime keeps one environment per process.
var (
	envOnce sync.Once
	envErr  error
)

func init() {
	embed.RegisterProvider("onnx", func(cfg embed.Config) (embed.Embedder, error) {
		return New(Config{
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			RuntimePath:   cfg.RuntimePath,
			ModelName:     cfg.Model,
			Dimensions:    cfg.Dimensions,
			MaxSeqLen:     cfg.MaxSeqLen,
		})
	})
}

type Config struct {
	ModelPath     string
	TokenizerPath string
	// RuntimePath points at the onnxruntime shared library. Empty uses the
	// platform default search path.
	RuntimePath string
	ModelName   string
	Dimensions  int
	MaxSeqLen   int
}

// session is the part of *ort.DynamicAdvancedSession the embedder uses.
type session interface {
	Run(inputs, outputs []ort.Value) error
	Destroy() error
}

type loaderFunc func(cfg Config) (*tokenizer.Tokenizer, session, error)

// Embedder loads the model on first use. It is safe for concurrent use;
// inference calls are serialised. A failed load is retried by the next
// call.
type Embedder struct {
	cfg  Config
	open loaderFunc

	// mu guards tk, session and closed.
	mu      sync.Mutex
	tk      *tokenizer.Tokenizer
	session session
	closed  bool
}

// New validates cfg and returns an embedder. Model files are checked here
// but not loaded until the first Embed call.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, sageerr.New(sageerr.CodeEmbedRequestInvalid,
			"onnx: model_path and tokenizer_path are required", sageerr.FieldProvider("onnx"))
	}
	for _, p := range []string{cfg.ModelPath, cfg.TokenizerPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeEmbedRequestInvalid, "onnx: model file not readable",
				sageerr.FieldPath(p))
		}
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = DefaultMaxSeqLen
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	return &Embedder{cfg: cfg, open: loadModel}, nil
}

func (e *Embedder) Dimensions() int { return e.cfg.Dimensions }
func (e *Embedder) ModelID() string { return "onnx/" + e.cfg.ModelName }

// ready returns the tokenizer, loading the model when needed.
func (e *Embedder) ready() (*tokenizer.Tokenizer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClosed()
	}
	if e.session != nil {
		return e.tk, nil
	}
	tk, sess, err := e.open(e.cfg)
	if err != nil {
		return nil, err
	}
	e.tk, e.session = tk, sess
	return tk, nil
}

func errClosed() error {
	return sageerr.New(sageerr.CodeEmbedUpstreamFailure, "onnx: embedder is closed", sageerr.FieldProvider("onnx"))
}

func loadModel(cfg Config) (*tokenizer.Tokenizer, session, error) {
	envOnce.Do(func() {
		if cfg.RuntimePath != "" {
			ort.SetSharedLibraryPath(cfg.RuntimePath)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, nil, sageerr.Wrapf(envErr, sageerr.CodeEmbedUpstreamFailure, "onnx: initialising runtime")
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, nil, sageerr.Wrap(err, sageerr.CodeEmbedUpstreamFailure, "onnx: loading tokenizer",
			sageerr.FieldPath(cfg.TokenizerPath))
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, nil, sageerr.Wrap(err, sageerr.CodeEmbedUpstreamFailure, "onnx: creating session",
			sageerr.FieldPath(cfg.ModelPath))
	}
	return tk, sess, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tk, err := e.ready()
	if err != nil {
		return nil, err
	}

	enc, err := tk.EncodeSingle(text, true)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedRequestInvalid, "onnx: tokenizing input")
	}
	ids, mask, types := truncate(enc.Ids, enc.AttentionMask, enc.TypeIds, e.cfg.MaxSeqLen)
	seqLen := int64(len(ids))
	if seqLen == 0 {
		return nil, sageerr.New(sageerr.CodeEmbedRequestInvalid, "onnx: input produced no tokens")
	}

	shape := ort.NewShape(1, seqLen)
	idsT, err := ort.NewTensor(shape, toInt64(ids))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "onnx: input_ids tensor")
	}
	defer func() { _ = idsT.Destroy() }()
	maskT, err := ort.NewTensor(shape, toInt64(mask))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "onnx: attention_mask tensor")
	}
	defer func() { _ = maskT.Destroy() }()
	typesT, err := ort.NewTensor(shape, toInt64(types))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "onnx: token_type_ids tensor")
	}
	defer func() { _ = typesT.Destroy() }()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(e.cfg.Dimensions)))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "onnx: output tensor")
	}
	defer func() { _ = out.Destroy() }()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, errClosed()
	}
	err = e.session.Run([]ort.Value{idsT, maskT, typesT}, []ort.Value{out})
	e.mu.Unlock()
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "onnx: inference")
	}

	vec := meanPool(out.GetData(), mask, e.cfg.Dimensions)
	l2Normalize(vec)
	return vec, nil
}

// Close releases the session. The process-wide runtime stays initialised.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.tk = nil
	return err
}

// truncate keeps the first maxLen tokens, replacing the last kept token
// with the original final token ([SEP]).
func truncate(ids, mask, types []int, maxLen int) ([]int, []int, []int) {
	if len(ids) <= maxLen || maxLen < 2 {
		return ids, mask, types
	}
	last := len(ids) - 1
	cut := func(s []int) []int {
		out := append([]int(nil), s[:maxLen]...)
		out[maxLen-1] = s[last]
		return out
	}
	return cut(ids), cut(mask), cut(types)
}

// meanPool averages hidden states [seq, dims] over positions where mask is 1.
func meanPool(hidden []float32, mask []int, dims int) []float32 {
	vec := make([]float32, dims)
	var n float32
	for pos, m := range mask {
		if m == 0 || (pos+1)*dims > len(hidden) {
			continue
		}
		row := hidden[pos*dims : (pos+1)*dims]
		for i, v := range row {
			vec[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

func toInt64(s []int) []int64 {
	out := make([]int64, len(s))
	for i, v := range s {
		out[i] = int64(v)
	}
	return out
}
