// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package dataset

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// Progress is called while a file downloads. total is -1 when the server
// does not send a length.
type Progress func(name string, done, total int64)

// Fetcher downloads missing artifacts from BaseURL/<name>.
type Fetcher struct {
	BaseURL  string
	Client   *http.Client
	Logger   *slog.Logger
	Progress Progress
}

// Fetch downloads every artifact in m that Verify reports missing and
// returns the names it fetched. Files already present are left untouched.
// Each file is written to a temporary name and renamed into place, so an
// interrupted download never leaves a partial artifact behind.
func (f *Fetcher) Fetch(ctx context.Context, dir string, m Manifest) ([]string, error) {
	if f.BaseURL == "" {
		return nil, sageerr.New(sageerr.CodeConfigValidateInvalidValue, "data.source_url is not configured")
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeDatasetWriteFailure, "creating data directory", sageerr.FieldPath(dir))
	}

	var fetched []string
	for _, st := range Verify(dir, m).Files {
		if st.Present {
			logger.Info("data file already present", "name", st.Name, "size", st.Size)
			continue
		}
		if err := f.download(ctx, st.Name, st.Path, logger); err != nil {
			if !st.Required && sageerr.HasCode(err, sageerr.CodeDatasetNotFound) {
				logger.Info("optional data file not available upstream", "name", st.Name)
				continue
			}
			return fetched, err
		}
		fetched = append(fetched, st.Name)
	}
	return fetched, nil
}

func (f *Fetcher) download(ctx context.Context, name, dest string, logger *slog.Logger) error {
	src, err := url.JoinPath(f.BaseURL, filepath.ToSlash(name))
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeConfigValidateInvalidValue, "building download URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeDatasetFetchFailure, "creating request")
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger.Info("downloading data file", "name", name, "url", src)
	resp, err := client.Do(req)
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeDatasetFetchFailure, "downloading %s", name)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sageerr.Errorf(sageerr.CodeDatasetNotFound, "%s not found at %s", name, src)
	case resp.StatusCode != http.StatusOK:
		return sageerr.Errorf(sageerr.CodeDatasetFetchFailure, "downloading %s: status %d", name, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return sageerr.Wrap(err, sageerr.CodeDatasetWriteFailure, "creating directory", sageerr.FieldPath(dest))
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeDatasetWriteFailure, "creating temporary file", sageerr.FieldPath(dest))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := &progressWriter{name: name, total: resp.ContentLength, report: f.Progress, logger: logger}
	n, err := io.Copy(io.MultiWriter(tmp, w), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeDatasetFetchFailure, "writing %s", name)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return sageerr.Errorf(sageerr.CodeDatasetFetchFailure, "%s truncated: got %d of %d bytes", name, n, resp.ContentLength)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return sageerr.Wrap(err, sageerr.CodeDatasetWriteFailure, "moving download into place", sageerr.FieldPath(dest))
	}
	logger.Info("downloaded data file", "name", name, "bytes", n)
	return nil
}

// progressWriter reports download progress in roughly 10% steps.
type progressWriter struct {
	name   string
	total  int64
	done   int64
	step   int64
	report Progress
	logger *slog.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.report != nil {
		p.report(p.name, p.done, p.total)
	}
	if p.total > 0 {
		if pct := p.done * 10 / p.total; pct > p.step {
			p.step = pct
			p.logger.Debug("download progress", "name", p.name, "percent", pct*10)
		}
	}
	return len(b), nil
}
