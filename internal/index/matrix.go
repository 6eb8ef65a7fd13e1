// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Matrix is a dense row-major N x D float32 matrix of embeddings. Row i
// belongs to catalog row i.
type Matrix struct {
	Rows int       `msgpack:"rows"`
	Dims int       `msgpack:"dims"`
	Data []float32 `msgpack:"data"`
}

// NewMatrix packs vectors into a Matrix. All vectors must share one
// dimension.
func NewMatrix(vectors [][]float32) (*Matrix, error) {
	dims, err := CheckVectors(vectors)
	if err != nil {
		return nil, err
	}
	m := &Matrix{Rows: len(vectors), Dims: dims, Data: make([]float32, 0, len(vectors)*dims)}
	for _, v := range vectors {
		m.Data = append(m.Data, v...)
	}
	return m, nil
}

// Row returns row i as a slice sharing the matrix storage.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dims : (i+1)*m.Dims : (i+1)*m.Dims]
}

// Vectors returns all rows as slices sharing the matrix storage.
func (m *Matrix) Vectors() [][]float32 {
	out := make([][]float32, m.Rows)
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

func (m *Matrix) validate() error {
	if m.Rows < 0 || m.Dims < 0 || len(m.Data) != m.Rows*m.Dims {
		return sageerr.Errorf(sageerr.CodeIndexFormatInvalid,
			"matrix declares %dx%d but holds %d values", m.Rows, m.Dims, len(m.Data))
	}
	return nil
}

// LoadMatrix reads an embedding matrix. The format is chosen by extension:
// .npy (NumPy) or .msgpack.
func LoadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeIndexLoadFailure, "opening embeddings", sageerr.FieldPath(path))
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	var m *Matrix
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		m, err = ReadNPY(r)
	case ".msgpack", ".mpk":
		m, err = ReadMsgpack(r)
	default:
		return nil, sageerr.New(sageerr.CodeIndexFormatInvalid, "unknown embeddings format, want .npy or .msgpack",
			sageerr.FieldPath(path))
	}
	if err != nil {
		return nil, sageerr.With(err, sageerr.FieldPath(path))
	}
	return m, nil
}

// SaveMatrix writes m as msgpack, replacing path atomically.
func SaveMatrix(path string, m *Matrix) error {
	if err := m.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "creating embeddings directory", sageerr.FieldPath(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".embeddings-*")
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "creating temp file", sageerr.FieldPath(path))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	if err := msgpack.NewEncoder(w).Encode(m); err != nil {
		_ = tmp.Close()
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "encoding embeddings", sageerr.FieldPath(path))
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "writing embeddings", sageerr.FieldPath(path))
	}
	if err := tmp.Close(); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "closing embeddings", sageerr.FieldPath(path))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "renaming embeddings", sageerr.FieldPath(path))
	}
	return nil
}

// ReadMsgpack decodes a Matrix written by SaveMatrix.
func ReadMsgpack(r io.Reader) (*Matrix, error) {
	var m Matrix
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "decoding msgpack embeddings")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescr   = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	npyFortran = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ReadNPY decodes a two-dimensional little-endian float32 or float64 NumPy
// array in C order. float64 values are narrowed to float32.
func ReadNPY(r io.Reader) (*Matrix, error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy preamble")
	}
	if !bytes.Equal(prefix[:6], npyMagic) {
		return nil, sageerr.New(sageerr.CodeIndexFormatInvalid, "not an npy file: bad magic")
	}

	var headerLen int
	switch major := prefix[6]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy header length")
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy header length")
		}
		headerLen = int(n)
	default:
		return nil, sageerr.Errorf(sageerr.CodeIndexFormatInvalid, "unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy header")
	}
	descr, rows, dims, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}

	m := &Matrix{Rows: rows, Dims: dims, Data: make([]float32, rows*dims)}
	switch descr {
	case "<f4":
		if err := binary.Read(r, binary.LittleEndian, m.Data); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy float32 data")
		}
	case "<f8":
		buf := make([]byte, 8)
		for i := range m.Data {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, sageerr.Wrap(err, sageerr.CodeIndexFormatInvalid, "reading npy float64 data")
			}
			m.Data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
		}
	default:
		return nil, sageerr.Errorf(sageerr.CodeIndexFormatInvalid, "unsupported npy dtype %q, want <f4 or <f8", descr)
	}
	return m, nil
}

func parseNPYHeader(h string) (descr string, rows, dims int, err error) {
	dm := npyDescr.FindStringSubmatch(h)
	fm := npyFortran.FindStringSubmatch(h)
	sm := npyShape.FindStringSubmatch(h)
	if dm == nil || fm == nil || sm == nil {
		return "", 0, 0, sageerr.Errorf(sageerr.CodeIndexFormatInvalid, "malformed npy header %q", strings.TrimSpace(h))
	}
	if fm[1] == "True" {
		return "", 0, 0, sageerr.New(sageerr.CodeIndexFormatInvalid, "fortran-ordered npy arrays are not supported")
	}

	var shape []int
	for _, part := range strings.Split(sm[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 0 {
			return "", 0, 0, sageerr.Errorf(sageerr.CodeIndexFormatInvalid, "bad npy shape %q", sm[1])
		}
		shape = append(shape, n)
	}
	if len(shape) != 2 {
		return "", 0, 0, sageerr.Errorf(sageerr.CodeIndexFormatInvalid,
			"npy array must be two-dimensional, got shape (%s)", sm[1])
	}
	return dm[1], shape[0], shape[1], nil
}

// WriteNPY encodes m as a version 1.0 float32 NumPy array.
func WriteNPY(w io.Writer, m *Matrix) error {
	if err := m.validate(); err != nil {
		return err
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", m.Rows, m.Dims)
	// Preamble (10 bytes) plus header plus newline is padded to 64 bytes.
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "writing npy header")
	}
	if err := binary.Write(w, binary.LittleEndian, m.Data); err != nil {
		return sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "writing npy data")
	}
	return nil
}
