package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipdeck/clipdeck/config"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *postgres.Migrator) error {
					ran, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", ran)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *postgres.Migrator) error {
					v, err := m.Rollback(ctx)
					if err != nil {
						return err
					}
					if v == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", v)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *postgres.Migrator) error {
					migrations, err := m.Status(ctx)
					if err != nil {
						return err
					}
					return printMigrations(cmd.OutOrStdout(), migrations)
				})
			},
		},
	)
	return cmd
}

// withMigrator открывает соединение только на время одной операции.
func withMigrator(ctx context.Context, opts *rootOptions, fn func(context.Context, *postgres.Migrator) error) error {
	db, err := config.LoadDatabase(opts.envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	conn, err := postgres.NewConnection(ctx, postgresConfig(*db, false))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}

func printMigrations(w io.Writer, migrations []postgres.Migration) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return tw.Flush()
}

// postgresConfig переносит настройки окружения в конфигурацию пула.
func postgresConfig(db config.DatabaseConfig, tracing bool) postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.URL = db.URL
	cfg.MaxConns = db.MaxConns
	cfg.MinConns = db.MinConns
	cfg.MaxConnLifetime = db.ConnMaxLifetime
	cfg.MaxConnIdleTime = db.ConnMaxIdleTime
	cfg.QueryTimeout = db.QueryTimeout
	cfg.Tracing = tracing
	return cfg
}
