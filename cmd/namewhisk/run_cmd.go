// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/namewhisk/internal/config"
	"github.com/ManuGH/namewhisk/internal/daemon"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/session"
)

type runOptions struct {
	channelID string
	budget    time.Duration
	options   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single session in the foreground",
		Long: `Run one session for the given channel and exit when it ends.

The budget is the remaining execution time of this invocation; the session
ends as out of time once less than the configured margin remains. An
interrupt ends the session the same way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			return runSession(cmd, cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.channelID, "channel-id", "", "channel identifier (required)")
	cmd.Flags().DurationVar(&opts.budget, "budget", 0, "remaining execution time (default session.defaultBudget)")
	cmd.Flags().StringVar(&opts.options, "options", "", "opaque JSON invocation options")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func runSession(cmd *cobra.Command, cfg config.AppConfig, opts *runOptions) error {
	inv := session.Invocation{ChannelID: opts.channelID}
	if opts.options != "" {
		if !json.Valid([]byte(opts.options)) {
			return fmt.Errorf("%w: --options is not valid JSON", session.ErrInvalidInvocation)
		}
		inv.Options = json.RawMessage(opts.options)
	}

	ctx := cmd.Context()
	logger := log.WithComponent("cli")
	if cfg.Transport.Kind == config.TransportMemory {
		logger.Warn().Msg("memory transport selected: only in-process clients can reach this session")
	}

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	coord, err := rt.Launcher.Invoke(ctx, inv, opts.budget)
	if err != nil {
		return err
	}
	logger.Info().
		Str(log.FieldSessionID, coord.SessionID()).
		Str(log.FieldTopic, coord.Topics().Request).
		Msg("session running")

	select {
	case <-coord.Done():
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.API.ShutdownTimeout)
		defer cancel()
		if err := rt.Launcher.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		<-coord.Done()
	}

	return writeSummary(cmd, coord.Summary())
}

func writeSummary(cmd *cobra.Command, s session.Summary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(daemon.RecordFromSummary(s))
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP invocation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := root.load(cmd)
			if err != nil {
				return err
			}
			holder := config.NewConfigHolder(cfg, loader)
			if err := holder.StartWatcher(cmd.Context()); err != nil {
				return err
			}
			defer holder.Stop()

			rt, err := daemon.Bootstrap(cmd.Context(), cfg, daemon.WithConfigHolder(holder))
			if err != nil {
				return err
			}
			app, err := daemon.NewApp(rt)
			if err != nil {
				_ = rt.Close(context.Background())
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
