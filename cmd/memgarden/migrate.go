package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/config"
	"github.com/dae9999nam/Memory-Garden/internal/store"
)

func newMigrateCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Records.Backend != "sqlite" {
				return fmt.Errorf("migrate only applies to the sqlite records backend (configured: %s)", cfg.Records.Backend)
			}

			if err := os.MkdirAll(filepath.Dir(cfg.Records.DBPath), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			if !dryRun {
				// Open applies pending migrations.
				st, err := store.Open(cfg.Records.DBPath)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			db, err := store.OpenRaw(cfg.Records.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			plan, err := store.MigrationPlan(db)
			if err != nil {
				return fmt.Errorf("inspect migrations: %w", err)
			}
			if *structured {
				return writeStructured(plan)
			}

			if err := writePlain("current version: %d\navailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
				return err
			}
			if len(plan.Pending) == 0 {
				return writePlain("no pending migrations\n")
			}
			if err := writePlain("pending migrations: %d\n", len(plan.Pending)); err != nil {
				return err
			}
			for _, m := range plan.Pending {
				if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	return cmd
}
