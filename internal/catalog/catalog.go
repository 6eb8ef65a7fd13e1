// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package catalog holds the static code catalog. Entries are addressed by
// their row position, which must match the row order the similarity index
// was built with.
package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tchap/go-patricia/v2/patricia"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Column names required in the catalog header.
const (
	ColumnCode        = "code"
	ColumnDescription = "description"
)

// Entry is one catalog row.
type Entry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Catalog is an ordered, read-only sequence of entries. It is safe for
// concurrent use once constructed.
type Catalog struct {
	entries []Entry
	codes   *patricia.Trie
}

// New builds a catalog from entries. The slice is copied.
func New(entries []Entry) *Catalog {
	c := &Catalog{
		entries: slices.Clone(entries),
		codes:   patricia.NewTrie(),
	}
	for row, e := range c.entries {
		key := patricia.Prefix(strings.ToLower(e.Code))
		if existing, ok := c.codes.Get(key).([]int); ok {
			c.codes.Set(key, append(existing, row))
			continue
		}
		c.codes.Insert(key, []int{row})
	}
	return c
}

// Load reads a catalog file. Files ending in .tsv are tab separated,
// everything else is read as CSV.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeCatalogLoadFailure, "opening catalog", sageerr.FieldPath(path))
	}
	defer func() { _ = f.Close() }()

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}

	c, err := read(f, comma)
	if err != nil {
		return nil, sageerr.With(err, sageerr.FieldPath(path))
	}
	return c, nil
}

// Read parses CSV catalog data from r.
func Read(r io.Reader) (*Catalog, error) {
	return read(r, ',')
}

func read(r io.Reader, comma rune) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sageerr.New(sageerr.CodeCatalogFormatInvalid, "catalog is empty: missing header row")
		}
		return nil, sageerr.Wrap(err, sageerr.CodeCatalogFormatInvalid, "reading catalog header")
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}

	codeCol := findColumn(header, ColumnCode)
	descCol := findColumn(header, ColumnDescription)
	if codeCol < 0 || descCol < 0 {
		return nil, sageerr.Errorf(sageerr.CodeCatalogFormatInvalid,
			"catalog header must contain %q and %q columns, got %v", ColumnCode, ColumnDescription, header)
	}

	var entries []Entry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, sageerr.Wrapf(err, sageerr.CodeCatalogFormatInvalid, "reading catalog line %d", line)
		}
		if len(record) <= codeCol || len(record) <= descCol {
			return nil, sageerr.Errorf(sageerr.CodeCatalogFormatInvalid,
				"catalog line %d has %d fields, need at least %d", line, len(record), max(codeCol, descCol)+1)
		}
		entries = append(entries, Entry{
			Code:        strings.TrimSpace(record[codeCol]),
			Description: strings.TrimSpace(record[descCol]),
		})
	}

	return New(entries), nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the entry at row. ok is false for rows outside [0, Len()).
func (c *Catalog) At(row int) (Entry, bool) {
	if c == nil || row < 0 || row >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[row], true
}

// Entries returns a copy of all entries in row order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return slices.Clone(c.entries)
}

// Descriptions returns the description column in row order.
func (c *Catalog) Descriptions() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Description
	}
	return out
}

// Lookup finds the first entry whose code matches case-insensitively.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	rows, ok := c.codes.Get(patricia.Prefix(strings.ToLower(strings.TrimSpace(code)))).([]int)
	if !ok || len(rows) == 0 {
		return Entry{}, false
	}
	return c.entries[rows[0]], true
}

// Contains reports whether code exists verbatim in the catalog.
func (c *Catalog) Contains(code string) bool {
	if c == nil {
		return false
	}
	rows, _ := c.codes.Get(patricia.Prefix(strings.ToLower(code))).([]int)
	for _, row := range rows {
		if c.entries[row].Code == code {
			return true
		}
	}
	return false
}

// WithPrefix returns entries whose code starts with prefix, compared
// case-insensitively, in catalog order. A non-positive limit returns all
// matches.
func (c *Catalog) WithPrefix(prefix string, limit int) []Entry {
	if c == nil {
		return nil
	}

	var rows []int
	_ = c.codes.VisitSubtree(patricia.Prefix(strings.ToLower(strings.TrimSpace(prefix))), func(_ patricia.Prefix, item patricia.Item) error {
		if r, ok := item.([]int); ok {
			rows = append(rows, r...)
		}
		return nil
	})
	slices.Sort(rows)

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = c.entries[row]
	}
	return out
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func findColumn(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}
