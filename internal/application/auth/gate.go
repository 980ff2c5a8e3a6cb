package auth

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Identity is the authenticated caller, produced once per request by AuthGate.
type Identity struct {
	UserID   string
	Name     string
	Email    string
	Role     domain.Role
	IssuedAt time.Time
}

// AuthGate turns a bearer credential into an Identity.
type AuthGate struct {
	tokens TokenIssuer
	store  *CredentialStore
}

func NewAuthGate(tokens TokenIssuer, store *CredentialStore) *AuthGate {
	return &AuthGate{tokens: tokens, store: store}
}

// Authenticate checks, in order: presence, signature and expiry, account
// existence, and that the password has not changed since the token was issued.
func (g *AuthGate) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return Identity{}, domain.ErrTokenMissing()
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if domain.Is(err, "token_expired") {
			return Identity{}, domain.ErrTokenExpired()
		}
		return Identity{}, domain.ErrTokenInvalid()
	}

	u, err := g.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound || domain.KindOf(err) == domain.KindValidation {
			return Identity{}, domain.ErrAccountGone()
		}
		return Identity{}, err
	}

	if u.ChangedPasswordAfter(claims.IssuedAt) {
		return Identity{}, domain.ErrPasswordChanged()
	}

	return Identity{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		IssuedAt: claims.IssuedAt,
	}, nil
}

// bearerToken extracts the credential from "Bearer <token>".
// The scheme is case-sensitive.
func bearerToken(authorization string) (string, bool) {
	tok, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}
