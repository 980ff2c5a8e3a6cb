package middleware

import (
	"context"

	"github.com/baechuer/natours-auth/internal/application/auth"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

// IdentityFromContext returns the caller stored by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is a shorthand used by the rate limiter.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}
