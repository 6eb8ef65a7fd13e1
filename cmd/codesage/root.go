// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codesage-dev/codesage/internal/config"
	"github.com/codesage-dev/codesage/internal/logging"
	"github.com/codesage-dev/codesage/internal/secrets"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// app carries the state shared by every subcommand of one root command.
type app struct {
	v       *viper.Viper
	secrets secrets.Opener
	logger  *slog.Logger

	// bootstrap disables writing a default config on first run.
	bootstrap bool
}

func newApp() *app {
	return &app{
		v:         viper.New(),
		secrets:   secrets.KeyringOpener,
		logger:    slog.Default(),
		bootstrap: true,
	}
}

// NewRootCmd creates the root codesage command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "codesage",
		Short:         "Codesage suggests catalog codes for clinical text",
		Long:          "Codesage normalizes free clinical text, embeds it, and ranks the closest entries of a medical code catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newStartCmd(a),
		newSuggestCmd(a),
		newLookupCmd(a),
		newCodesCmd(a),
		newIndexCmd(a),
		newDataCmd(a),
		newDoctorCmd(a),
		newStatusCmd(a),
		newSecretCmd(a),
		newVersionCmd(),
	)

	return root
}

// init sets up viper with defaults, env bindings, flag bindings, and an
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly. Keyring references are then resolved and
// the default logger installed.
func (a *app) init(cmd *cobra.Command) error {
	v := a.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset: viper would otherwise also try the
		// bare name "codesage", which is the binary in a checkout.
		v.SetConfigName("codesage")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/codesage")
		v.AddConfigPath("/etc/codesage")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if err := a.readBootstrapped(); err != nil {
				return err
			}
		}
	}

	if err := v.BindPFlag("data.dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return sageerr.Errorf(sageerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return sageerr.Errorf(sageerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	level := v.GetString("logging.level")
	if v.GetBool("verbose") {
		level = "debug"
	}
	logger, err := logging.Setup(level, v.GetString("logging.format"), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	if err := secrets.ResolveViper(v, a.secrets); err != nil {
		a.logger.Warn("unresolved keyring references in config", "error", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		config.CheckPermissions(a.logger, used, v.GetString("embedder.api_key") != "")
	}
	return nil
}

func (a *app) readBootstrapped() error {
	if !a.bootstrap {
		return nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil
	}
	if _, statErr := os.Stat(path); statErr != nil && !config.Bootstrap(path) {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
	}
	return nil
}

// config decodes and validates the resolved configuration.
func (a *app) config() (*config.Config, error) {
	return config.FromViper(a.v)
}
