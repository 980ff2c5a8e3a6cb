package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/baechuer/natours-auth/internal/bootstrap"
	"github.com/baechuer/natours-auth/internal/config"
)

// NewRootCmd creates the root command for the authctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Natours auth maintenance",
		Long:          `authctl applies migrations, seeds dev accounts and mints session tokens. It reads the same environment as the API.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewIssueTokenCmd())

	return cmd
}

// openStore loads config and connects without auto-migrating.
func openStore(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.DBAutoMigrate = false
	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
