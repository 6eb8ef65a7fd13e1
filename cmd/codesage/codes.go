// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/catalog"
	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func newCodesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes [prefix]",
		Short: "List catalog codes by prefix",
		Long:  "List entries of the local catalog whose code starts with prefix. Matching ignores case and dots.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runCodes(cmd, a, prefix)
		},
	}

	cmd.Flags().Int("limit", 50, "maximum number of codes to list (0 for all)")

	return cmd
}

func runCodes(cmd *cobra.Command, a *app, prefix string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return sageerr.Errorf(sageerr.CodeCLIInputInvalid, "--limit must not be negative, got %d", limit)
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.Data.CatalogPath())
	if err != nil {
		return err
	}

	entries := cat.WithPrefix(strings.ReplaceAll(prefix, ".", ""), limit)
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(out, "No codes match %q.\n", prefix)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", suggest.FormatCode(e.Code), e.Description)
	}
	return tw.Flush()
}
