package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"briefly/internal/config"
	"briefly/internal/logger"
	"briefly/internal/persistence"
)

// newMigrateCmd mirrors the teacher's migrate command: a thin cobra wrapper
// around persistence.MigrationManager, talking to the store directly rather
// than through api.App (migrations run before the rest of the app is wired).
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Roll back the last migration (use with caution!)

Example:
  briefly migrate up`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateRollbackCmd())

	return cmd
}

func openMigrator(ctx context.Context) (*persistence.MigrationManager, *persistence.PostgresDB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := persistence.NewPostgresDB(cfg.Store.ConnectionString)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to store: %w", err)
	}
	return persistence.NewMigrationManager(db), db, nil
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, db, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrator.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("all migrations applied successfully")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, db, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			if len(status) == 0 {
				fmt.Println("no migrations found")
				return nil
			}

			applied, pending := 0, 0
			fmt.Printf("%-10s %-10s %s\n", "version", "status", "description")
			for _, m := range status {
				state := "pending"
				if m.Applied {
					state = "applied"
					applied++
				} else {
					pending++
				}
				fmt.Printf("%-10d %-10s %s\n", m.Version, state, m.Description)
			}

			fmt.Println()
			fmt.Printf("applied: %d  pending: %d  total: %d\n", applied, pending, len(status))
			if pending > 0 {
				fmt.Println("run 'briefly migrate up' to apply pending migrations")
			}
			return nil
		},
	}
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration",
		Long: `Removes the last migration's record from schema_migrations.
This does not revert any schema change made by that migration; that must
be done by hand. Use --force to skip the confirmation prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Println("this only removes the migration record; you must manually revert the schema change")
				fmt.Print("proceed? (yes/no): ")
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				if response != "yes" {
					fmt.Println("rollback cancelled")
					return nil
				}
			}

			migrator, db, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrator.Rollback(cmd.Context()); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}

			logger.Warn("migration record removed, schema change must be reverted manually")
			fmt.Println("migration record removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")
	return cmd
}
