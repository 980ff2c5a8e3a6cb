package auth

import (
	"context"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

/*
UserRepo
--------
Persistence port for accounts.
Only describes WHAT the credential store needs, not HOW it's stored.

Lookups by email and id return the record whether or not it is active;
filtering is the caller's job. Reset-token lookups only match active
accounts with an unexpired token and fail with domain.ErrInvalidResetToken.
Every timestamp written here comes from the store's own clock.
*/
type UserRepo interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)

	// UpdatePassword stores newHash, stamps PasswordChangedAt and clears
	// any pending reset token in a single write.
	UpdatePassword(ctx context.Context, userID, newHash string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error)
	Deactivate(ctx context.Context, userID string) error

	// SetResetToken stores tokenHash with expiry now+ttl and returns the expiry.
	SetResetToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) (time.Time, error)
	// ClearResetToken removes the reset fields only if tokenHash is still the stored one.
	ClearResetToken(ctx context.Context, userID, tokenHash string) error
	GetByResetToken(ctx context.Context, tokenHash string) (domain.User, error)
	// ConsumeResetToken is a conditional write: at most one caller succeeds per token.
	ConsumeResetToken(ctx context.Context, tokenHash, newHash string) (domain.User, error)
}

/*
PasswordHasher
--------------
Adaptive hashing. Implementations may queue work on a bounded pool,
so both calls honour ctx while waiting.
*/
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Compare reports a mismatch as (false, nil).
	Compare(ctx context.Context, hash, password string) (bool, error)
}

/*
TokenIssuer
-----------
Issues and verifies signed session tokens.
*/
type TokenClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
	// IssueAt issues a token whose issuedAt is no earlier than notBefore.
	IssueAt(userID string, notBefore time.Time) (string, error)
	Verify(token string) (TokenClaims, error)
}

/*
Notifier
--------
Delivers a message to an account holder (SMTP, broker, log).
*/
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}
