// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/namewhisk/internal/config"
	"github.com/ManuGH/namewhisk/internal/log"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "namewhisk",
		Short:         "Name suggestion sessions over pub/sub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file (YAML); defaults to $NAMEWHISK_CONFIG")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newLedgerCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load resolves the configuration and reconfigures the global logger from it.
func (o *rootOptions) load(cmd *cobra.Command) (config.AppConfig, *config.Loader, error) {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
	}

	// safe defaults until config is loaded
	log.Configure(log.Config{Level: "info", Output: cmd.ErrOrStderr(), Version: version})

	loader := config.NewLoader(path, version)
	loader.ConsumedEnvKeys[config.EnvPrefix+"CONFIG"] = struct{}{}
	cfg, err := loader.Load()
	if err != nil {
		return cfg, loader, fmt.Errorf("load configuration: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.Logging.Level,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.Logging.Service,
		Version: cfg.Version,
	})
	logger := log.WithComponent("cli")
	for _, key := range loader.UnknownEnvKeys() {
		logger.Warn().Str("key", key).Str(log.FieldEvent, "config.unknown_env").Msg("unknown environment variable ignored")
	}
	return cfg, loader, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "namewhisk %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return err
		},
	}
}
