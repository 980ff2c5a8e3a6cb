package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baechuer/natours-auth/internal/infrastructure/db/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations to the database named by DB_ADDR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if status {
				return postgres.MigrationStatus(ctx, db)
			}

			cmd.Println("Running migrations...")
			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}
