// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/dataset"
)

func newDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Provision the catalog, embeddings and model files",
	}
	cmd.AddCommand(newDataFetchCmd(a), newDataVerifyCmd(a))
	return cmd
}

func newDataFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download missing data files",
		Long:  "Download every data file that is missing from the data directory. Files already present are kept.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				url = cfg.Data.SourceURL
			}

			f := &dataset.Fetcher{BaseURL: url, Client: defaultHTTPClient, Logger: a.logger}
			fetched, err := f.Fetch(cmd.Context(), cfg.Data.Dir, manifest(cfg))
			out := cmd.OutOrStdout()
			for _, name := range fetched {
				_, _ = fmt.Fprintf(out, "Fetched %s\n", name)
			}
			if err != nil {
				return err
			}
			return printReport(out, dataset.Verify(cfg.Data.Dir, manifest(cfg)))
		},
	}
	cmd.Flags().String("url", "", "base URL to download from (default: data.source_url)")
	return cmd
}

func newDataVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the data files are present",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			r := dataset.Verify(cfg.Data.Dir, manifest(cfg))
			if err := printReport(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			return r.Err()
		},
	}
}

func printReport(w io.Writer, r dataset.Report) error {
	if _, err := fmt.Fprintf(w, "Data directory: %s\n", r.Dir); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range r.Files {
		state := "missing"
		if f.Present {
			state = formatBytes(uint64(f.Size))
		}
		kind := "required"
		if !f.Required {
			kind = "optional"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, kind, state)
	}
	return tw.Flush()
}
