// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/config"
	"github.com/codesage-dev/codesage/internal/dataset"
	"github.com/codesage-dev/codesage/internal/server"
	"github.com/codesage-dev/codesage/internal/transport/natsrpc"
)

func newStartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the codesage server",
		Long:  "Load configuration, wire the suggestion engine, and serve it over HTTP and, when configured, NATS.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, a)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().Bool("preload", true, "load catalog and index at startup instead of on first request")

	return cmd
}

func runStart(cmd *cobra.Command, a *app) error {
	if err := a.v.BindPFlag("networking.listen", cmd.Flags().Lookup("listen")); err != nil {
		return err
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv, err := newHTTPServer(cfg, st, a)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if cfg.NATS.URL != "" {
		nc, sub, err := serveNATS(cfg, st, a)
		if err != nil {
			return err
		}
		defer nc.Close()
		defer func() { _ = natsrpc.Drain(sub, 5*time.Second) }()
	}

	if preload, _ := cmd.Flags().GetBool("preload"); preload {
		go func() {
			if _, err := st.engine.Handle().Get(ctx); err != nil {
				a.logger.Warn("preloading engine failed; retrying on first request", "error", err)
			}
		}()
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting codesage on %s\n", cfg.Networking.Listen)
	return srv.Start(ctx)
}

func newHTTPServer(cfg *config.Config, st *stack, a *app) (*server.Server, error) {
	services, err := server.NewEngineServices(&server.EngineService{
		Engine:  st.engine,
		Version: version,
		Artifacts: func() dataset.Report {
			return dataset.Verify(cfg.Data.Dir, manifest(cfg))
		},
	})
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		ListenAddr:     cfg.Networking.Listen,
		CORSOrigins:    cfg.Networking.CORSOrigins,
		RequestTimeout: cfg.Networking.RequestTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimitRPS,
			Burst:             cfg.Networking.RateLimitBurst,
		},
		Tracing:     cfg.Tracing.Enabled,
		DefaultTopN: cfg.Ranking.DefaultTopN,
		MaxTopN:     cfg.Ranking.MaxTopN,
		Version:     version,
		Logger:      a.logger,
	}, services)
}

func serveNATS(cfg *config.Config, st *stack, a *app) (*nats.Conn, *nats.Subscription, error) {
	nc, err := natsrpc.Connect(cfg.NATS.URL, "codesage")
	if err != nil {
		return nil, nil, err
	}
	r := &natsrpc.Responder{
		Suggester:   st.engine,
		DefaultTopN: cfg.Ranking.DefaultTopN,
		MaxTopN:     cfg.Ranking.MaxTopN,
		Logger:      a.logger,
	}
	sub, err := r.Serve(nc, cfg.NATS.Subject, cfg.NATS.Queue)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, sub, nil
}

// runWithTimeout bounds ctx for one-shot commands.
func runWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
