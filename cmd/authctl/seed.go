package main

import (
	"github.com/spf13/cobra"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/bootstrap"
	"github.com/baechuer/natours-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/natours-auth/internal/infrastructure/security"
	"github.com/baechuer/natours-auth/internal/logger"
)

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create one account per role",
		Long:  `Create <role>@natours.io for every role. Existing accounts are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			pool := security.NewHashPool(security.NewBcryptHasher(cfg.BcryptCost), cfg.HashWorkers, cfg.HashQueueDepth)
			defer pool.Close()

			store := auth.NewCredentialStore(postgres.NewUserRepo(db), pool)
			if err := bootstrap.SeedUsers(ctx, store, password, logger.Logger); err != nil {
				return err
			}
			cmd.Println("Seed completed")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", bootstrap.DefaultSeedPassword, "password for every seeded account")
	return cmd
}
