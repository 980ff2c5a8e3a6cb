package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baechuer/natours-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/natours-auth/internal/infrastructure/security"
)

// NewIssueTokenCmd creates the issue-token subcommand.
func NewIssueTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a session token for an account",
		Long: `Print a signed session token. With --user-id only JWT_SECRET is needed;
with --email the account is looked up in the database first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID == "") == (email == "") {
				return errors.New("exactly one of --user-id or --email is required")
			}

			secret := os.Getenv("JWT_SECRET")
			issuer := os.Getenv("JWT_ISSUER")
			if email != "" {
				ctx := cmd.Context()
				cfg, db, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				u, err := postgres.NewUserRepo(db).GetByEmail(ctx, email)
				if err != nil {
					return err
				}
				userID, secret, issuer = u.ID, cfg.JWTSecret, cfg.JWTIssuer
			}
			if secret == "" {
				return errors.New("missing required env var: JWT_SECRET")
			}
			if issuer == "" {
				issuer = "natours-auth"
			}

			tok, err := security.NewJWTIssuer(secret, issuer, ttl).Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "account id to sign for")
	cmd.Flags().StringVar(&email, "email", "", "look up the account by email")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
