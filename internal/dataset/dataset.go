// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package dataset checks for and downloads the files the suggestion engine
// loads at startup.
package dataset

import (
	"os"
	"path/filepath"
	"strings"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Artifact is one file in the data directory.
type Artifact struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Manifest lists the artifacts of a data directory.
type Manifest []Artifact

// DefaultManifest returns the catalog and embedding matrix as required
// artifacts, followed by any optional extras such as local model files.
func DefaultManifest(catalog, embeddings string, optional ...string) Manifest {
	m := Manifest{
		{Name: catalog, Required: true},
		{Name: embeddings, Required: true},
	}
	for _, name := range optional {
		if name != "" {
			m = append(m, Artifact{Name: name})
		}
	}
	return m
}

// FileStatus is the observed state of one artifact.
type FileStatus struct {
	Artifact
	Path    string `json:"path"`
	Present bool   `json:"present"`
	Size    int64  `json:"size"`
}

// Report is the result of Verify.
type Report struct {
	Dir   string       `json:"dir"`
	Files []FileStatus `json:"files"`
}

// Ready reports whether every required artifact is present.
func (r Report) Ready() bool {
	return len(r.MissingRequired()) == 0
}

// Missing returns every absent artifact.
func (r Report) Missing() []FileStatus {
	var out []FileStatus
	for _, f := range r.Files {
		if !f.Present {
			out = append(out, f)
		}
	}
	return out
}

// MissingRequired returns the absent required artifacts.
func (r Report) MissingRequired() []FileStatus {
	var out []FileStatus
	for _, f := range r.Missing() {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Err returns a not-found error naming the missing required artifacts, or
// nil when the directory is ready.
func (r Report) Err() error {
	missing := r.MissingRequired()
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = f.Name
	}
	return sageerr.New(sageerr.CodeDatasetNotFound,
		"missing required data files: "+strings.Join(names, ", ")+" (run `codesage data fetch`)",
		sageerr.FieldPath(r.Dir))
}

// Resolve returns the on-disk path of name inside dir.
func Resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// Verify stats every artifact in m under dir. Empty files count as
// missing.
func Verify(dir string, m Manifest) Report {
	r := Report{Dir: dir, Files: make([]FileStatus, 0, len(m))}
	for _, a := range m {
		st := FileStatus{Artifact: a, Path: Resolve(dir, a.Name)}
		if info, err := os.Stat(st.Path); err == nil && !info.IsDir() && info.Size() > 0 {
			st.Present = true
			st.Size = info.Size()
		}
		r.Files = append(r.Files, st)
	}
	return r
}
