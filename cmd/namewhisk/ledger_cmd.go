// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/namewhisk/internal/config"
	"github.com/ManuGH/namewhisk/internal/daemon"
	"github.com/ManuGH/namewhisk/internal/persistence/sqlite"
	"github.com/ManuGH/namewhisk/internal/store"
)

var errLedgerNotPersistent = errors.New("ledger verify requires store.backend=sqlite")

func newLedgerCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the session ledger",
	}
	cmd.AddCommand(newLedgerListCmd(root), newLedgerVerifyCmd(root))
	return cmd
}

func newLedgerListCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List finished sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			ledger, err := daemon.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			records, err := ledger.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list ledger: %w", err)
			}
			if records == nil {
				records = []store.Record{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum number of records")
	return cmd
}

func newLedgerVerifyCmd(root *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the SQLite ledger for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("unsupported mode %q (use quick or full)", mode)
			}
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.StoreSQLite {
				return errLedgerNotPersistent
			}
			problems, err := sqlite.VerifyIntegrity(cfg.Store.Path, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				_, err = fmt.Fprintf(out, "%s: ok\n", cfg.Store.Path)
				return err
			}
			for _, p := range problems {
				if _, err := fmt.Fprintln(out, p); err != nil {
					return err
				}
			}
			return fmt.Errorf("%s: integrity check reported %d problem(s)", cfg.Store.Path, len(problems))
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "quick", "check depth: quick or full")
	return cmd
}
