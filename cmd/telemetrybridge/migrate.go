package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/database"
	"github.com/nerrad567/telemetry-bridge/migrations"
)

// newMigrateCmd builds `migrate status|up|down` for managing the command
// log schema outside the running service.
func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the command log schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withCommandLog(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withCommandLog(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					if err := db.Migrate(ctx, migrations.FS); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withCommandLog(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					if err := db.MigrateDown(ctx, migrations.FS); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
	)

	return cmd
}

// withCommandLog opens the configured command log database without
// migrating it and runs fn against it.
func withCommandLog(ctx context.Context, configPath string, fn func(context.Context, *database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly CLI session

	return fn(ctx, db)
}

func printMigrationStatus(ctx context.Context, w io.Writer, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	for _, r := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(w, "no migrations")
	}
	return nil
}
