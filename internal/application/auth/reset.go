package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

const resetTokenBytes = 32

// PasswordResetFlow issues and consumes single-use reset tokens.
// Only the SHA-256 digest of a token is ever stored.
type PasswordResetFlow struct {
	users    UserRepo
	store    *CredentialStore
	tokens   TokenIssuer
	notifier Notifier

	ttl             time.Duration
	deliveryTimeout time.Duration
	random          io.Reader
}

func NewPasswordResetFlow(users UserRepo, store *CredentialStore, tokens TokenIssuer, notifier Notifier, ttl, deliveryTimeout time.Duration) *PasswordResetFlow {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}
	return &PasswordResetFlow{
		users:           users,
		store:           store,
		tokens:          tokens,
		notifier:        notifier,
		ttl:             ttl,
		deliveryTimeout: deliveryTimeout,
		random:          rand.Reader,
	}
}

// Request stores a fresh reset token for email and sends linkBase+token to
// the account holder. If delivery fails the stored token is rolled back.
func (f *PasswordResetFlow) Request(ctx context.Context, email, linkBase string) (domain.User, error) {
	u, err := f.store.FindByEmail(ctx, email, false)
	if err != nil {
		return domain.User{}, err
	}

	raw, err := newResetToken(f.random)
	if err != nil {
		return domain.User{}, domain.ErrRandomFailed(err)
	}
	digest := hashResetToken(raw)

	if _, err := f.users.SetResetToken(ctx, u.ID, digest, f.ttl); err != nil {
		return domain.User{}, err
	}

	// Delivery and rollback run on their own deadline so a client
	// disconnect cannot leave a token stored without an email sent.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.deliveryTimeout)
	defer cancel()

	sendErr := f.notifier.Send(dctx, resetNotification(u, linkBase+raw, f.ttl))
	if sendErr == nil {
		return u, nil
	}

	rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), f.deliveryTimeout)
	defer rcancel()
	if rbErr := f.users.ClearResetToken(rctx, u.ID, digest); rbErr != nil {
		return domain.User{}, domain.ErrDeliveryFailed(errors.Join(sendErr, fmt.Errorf("rollback: %w", rbErr)))
	}
	return domain.User{}, domain.ErrDeliveryFailed(sendErr)
}

// Consume sets a new password for the holder of raw and returns a fresh
// session token. The token is single use.
func (f *PasswordResetFlow) Consume(ctx context.Context, raw, password, confirm string) (AuthResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AuthResult{}, domain.ErrInvalidResetToken()
	}
	digest := hashResetToken(raw)

	// Cheap pre-check so an unknown token never costs a hash.
	if _, err := f.users.GetByResetToken(ctx, digest); err != nil {
		return AuthResult{}, err
	}

	if err := checkNewPassword(password, confirm); err != nil {
		return AuthResult{}, err
	}

	newHash, err := f.store.hasher.Hash(ctx, password)
	if err != nil {
		return AuthResult{}, err
	}

	u, err := f.users.ConsumeResetToken(ctx, digest, newHash)
	if err != nil {
		return AuthResult{}, err
	}
	u.PasswordHash = ""

	tok, err := f.tokens.IssueAt(u.ID, changedAtOrNow(u))
	if err != nil {
		return AuthResult{}, domain.ErrTokenSignFailed(err)
	}
	return AuthResult{User: u, Token: tok}, nil
}

func newResetToken(r io.Reader) (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func resetNotification(u domain.User, link string, ttl time.Duration) domain.Notification {
	return domain.Notification{
		To:      u.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", int(ttl.Minutes())),
		Body: fmt.Sprintf(
			"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n"+
				"If you didn't forget your password, please ignore this email!",
			link,
		),
	}
}

func changedAtOrNow(u domain.User) time.Time {
	if u.PasswordChangedAt != nil {
		return *u.PasswordChangedAt
	}
	return time.Now()
}
