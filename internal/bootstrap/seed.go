package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
)

// DefaultSeedPassword is shared by every seeded dev account.
const DefaultSeedPassword = "test1234"

// SeedUsers creates one account per role (<role>@natours.io). Existing
// accounts are left alone, so it is safe to run on every start.
func SeedUsers(ctx context.Context, store *auth.CredentialStore, password string, lg zerolog.Logger) error {
	for _, role := range domain.Roles {
		email := string(role) + "@natours.io"
		u, err := store.Create(ctx, auth.NewAccount{
			Name:            "Seed " + string(role),
			Email:           email,
			Password:        password,
			PasswordConfirm: password,
			Role:            role,
		})
		if domain.Is(err, "email_taken") {
			continue
		}
		if err != nil {
			return err
		}
		lg.Info().Str("user_id", u.ID).Str("role", string(role)).Msg("seeded user")
	}
	return nil
}
