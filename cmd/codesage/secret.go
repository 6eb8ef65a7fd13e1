// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/secrets"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Store embedder credentials in the operating system keyring.

Reference a stored secret from configuration as keyring://<service>/<name>,
for example embedder.api_key: keyring://codesage/openai-api-key.`,
	}

	cmd.PersistentFlags().String("service", secrets.DefaultService, "keyring service name")

	cmd.AddCommand(
		newSecretSetCmd(a),
		newSecretGetCmd(a),
		newSecretListCmd(a),
		newSecretDeleteCmd(a),
	)

	return cmd
}

func secretStore(cmd *cobra.Command, a *app) (secrets.Store, string) {
	service, _ := cmd.Flags().GetString("service")
	if service == "" {
		service = secrets.DefaultService
	}
	return a.secrets(service), service
}

func newSecretSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return sageerr.Errorf(sageerr.CodeCLIInputInvalid, "reading secret value from stdin: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return sageerr.New(sageerr.CodeCLIInputInvalid, "secret value must not be empty")
			}

			store, service := secretStore(cmd, a)
			if err := store.Set(name, value); err != nil {
				return err
			}
			ref := secrets.Ref{Service: service, Key: name}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\n", ref)
			return nil
		},
	}
}

func newSecretGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := secretStore(cmd, a)
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newSecretListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _ := secretStore(cmd, a)
			keys, err := store.List()
			if err != nil {
				return sageerr.Errorf(sageerr.CodeSecretListFailure, "listing secrets: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(out, "No secrets stored.")
				return nil
			}
			for _, k := range keys {
				_, _ = fmt.Fprintln(out, k)
			}
			return nil
		},
	}
}

func newSecretDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, _ := secretStore(cmd, a)

			if err := store.Delete(name); err != nil {
				if sageerr.HasCode(err, sageerr.CodeSecretNotFound) {
					return sageerr.Errorf(sageerr.CodeSecretNotFound, "secret %q not found", name)
				}
				return sageerr.Errorf(sageerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
			return nil
		},
	}
}
