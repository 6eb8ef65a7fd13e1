// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codesage-dev/codesage/internal/catalog"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `code,description
A219,"Tularemia, unspecified"
R10,Abdominal and pelvic pain
R1010,"Upper abdominal pain, unspecified"
J45,Asthma
`

func TestRead_PreservesRowOrder(t *testing.T) {
	c, err := catalog.Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	e, ok := c.At(0)
	require.True(t, ok)
	assert.Equal(t, catalog.Entry{Code: "A219", Description: "Tularemia, unspecified"}, e)

	e, ok = c.At(3)
	require.True(t, ok)
	assert.Equal(t, "J45", e.Code)
}

func TestRead_HeaderIsCaseInsensitiveAndOrderFree(t *testing.T) {
	data := "\ufeffDescription,extra,CODE\nAsthma,x,J45\n"
	c, err := catalog.Read(strings.NewReader(data))
	require.NoError(t, err)

	e, ok := c.At(0)
	require.True(t, ok)
	assert.Equal(t, "J45", e.Code)
	assert.Equal(t, "Asthma", e.Description)
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := catalog.Read(strings.NewReader("code,label\nJ45,Asthma\n"))
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeCatalogFormatInvalid))
}

func TestRead_EmptyInput(t *testing.T) {
	_, err := catalog.Read(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, sageerr.IsInvalidInput(err))
}

func TestRead_HeaderOnlyIsEmptyCatalog(t *testing.T) {
	c, err := catalog.Read(strings.NewReader("code,description\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestAt_OutOfRange(t *testing.T) {
	c := catalog.New([]catalog.Entry{{Code: "R10", Description: "pain"}})

	for _, row := range []int{-1, 1, 100} {
		_, ok := c.At(row)
		assert.False(t, ok, "row %d", row)
	}

	var nilCatalog *catalog.Catalog
	_, ok := nilCatalog.At(0)
	assert.False(t, ok)
	assert.Equal(t, 0, nilCatalog.Len())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.tsv")
	require.NoError(t, os.WriteFile(path, []byte("code\tdescription\nR10\tAbdominal pain\n"), 0o600))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeCatalogLoadFailure))
}

func TestWithPrefix(t *testing.T) {
	c, err := catalog.Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	got := c.WithPrefix("r10", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "R10", got[0].Code)
	assert.Equal(t, "R1010", got[1].Code)

	assert.Len(t, c.WithPrefix("R", 1), 1)
	assert.Empty(t, c.WithPrefix("Z", 0))
	assert.Len(t, c.WithPrefix("", 0), 4)
}

func TestLookupAndContains(t *testing.T) {
	c, err := catalog.Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	e, ok := c.Lookup("a219")
	require.True(t, ok)
	assert.Equal(t, "A219", e.Code)

	assert.True(t, c.Contains("A219"))
	assert.False(t, c.Contains("a219"), "Contains is verbatim")
	assert.False(t, c.Contains("B00"))
}

func TestEntriesIsACopy(t *testing.T) {
	c := catalog.New([]catalog.Entry{{Code: "R10", Description: "pain"}})
	entries := c.Entries()
	entries[0].Code = "changed"

	e, _ := c.At(0)
	assert.Equal(t, "R10", e.Code)
	assert.Equal(t, []string{"pain"}, c.Descriptions())
}
