// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/transport/natsrpc"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
	"github.com/codesage-dev/codesage/pkg/types"
)

func newSuggestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Suggest codes for clinical text",
		Long: `Suggest catalog codes for free clinical text.

By default the engine runs in-process against the local data directory.
With --server the request goes to a running codesage server over HTTP,
with --nats to a responder over NATS.`,
		Example: `  codesage suggest "sharp abdominal pain for 3 days"
  codesage suggest --top-n 5 --json "shortness of breath"
  codesage suggest --server 127.0.0.1:8765 "fever"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, a, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntP("top-n", "n", 0, "number of suggestions (default: ranking.default_top_n)")
	cmd.Flags().Bool("json", false, "print the response as JSON")
	cmd.Flags().String("server", "", "send the request to a running server at this address")
	cmd.Flags().String("nats", "", "send the request to a NATS responder at this URL")
	cmd.Flags().Duration("timeout", 30*time.Second, "overall request timeout")
	cmd.MarkFlagsMutuallyExclusive("server", "nats")

	return cmd
}

func runSuggest(cmd *cobra.Command, a *app, text string) error {
	topN, _ := cmd.Flags().GetInt("top-n")
	asJSON, _ := cmd.Flags().GetBool("json")
	addr, _ := cmd.Flags().GetString("server")
	natsURL, _ := cmd.Flags().GetString("nats")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if topN < 0 {
		return sageerr.Errorf(sageerr.CodeCLIInputInvalid, "--top-n must not be negative, got %d", topN)
	}

	ctx, cancel := runWithTimeout(cmd.Context(), timeout)
	defer cancel()

	req := types.SuggestRequest{Text: text, TopN: topN}
	var (
		resp types.SuggestResponse
		err  error
	)
	switch {
	case addr != "":
		err = newServerClient(addr).postJSON("/api/v1/suggest", req, &resp)
	case natsURL != "":
		nc, connErr := natsrpc.Connect(natsURL, "codesage-cli")
		if connErr != nil {
			return connErr
		}
		defer nc.Close()
		resp, err = natsrpc.Suggest(ctx, nc, a.v.GetString("nats.subject"), req)
	default:
		cfg, cfgErr := a.config()
		if cfgErr != nil {
			return cfgErr
		}
		if topN == 0 {
			req.TopN = cfg.Ranking.DefaultTopN
		}
		st, buildErr := buildStack(cfg, a.logger)
		if buildErr != nil {
			return buildErr
		}
		defer func() { _ = st.Close() }()

		out, runErr := st.engine.Run(ctx, req.Text, req.TopN)
		resp = types.SuggestResponse{Normalized: out.Normalized, Results: out.Suggestions}
		err = runErr
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printSuggestions(w, resp)
}

func printSuggestions(w io.Writer, resp types.SuggestResponse) error {
	if resp.Normalized != "" {
		if _, err := fmt.Fprintf(w, "Normalized: %s\n\n", resp.Normalized); err != nil {
			return err
		}
	}
	if len(resp.Results) == 0 {
		_, err := fmt.Fprintln(w, "No matching codes.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tSCORE\tDESCRIPTION")
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(tw, "%s\t%.3f\t%s\n", r.FormattedCode, r.Score, r.Description)
	}
	return tw.Flush()
}
