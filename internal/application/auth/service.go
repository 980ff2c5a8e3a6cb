package auth

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Service is the use-case facade the HTTP handlers talk to.
type Service struct {
	users  UserRepo
	store  *CredentialStore
	gate   *AuthGate
	reset  *PasswordResetFlow
	tokens TokenIssuer

	audit func(action string, fields map[string]string)

	// dummyHash equalizes login timing for unknown emails. Only a
	// successful hash is cached; failures are retried on the next login.
	dummyMu   sync.Mutex
	dummyHash string
}

type Config struct {
	PasswordResetTokenTTL time.Duration
	ResetDeliveryTimeout  time.Duration
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	cfg Config,
) *Service {
	store := NewCredentialStore(users, hasher)
	return &Service{
		users:  users,
		store:  store,
		gate:   NewAuthGate(tokens, store),
		reset:  NewPasswordResetFlow(users, store, tokens, notifier, cfg.PasswordResetTokenTTL, cfg.ResetDeliveryTimeout),
		tokens: tokens,
		audit:  func(string, map[string]string) {},
	}
}

// AuthResult is the common output of flows that sign the caller in.
type AuthResult struct {
	User  domain.User
	Token string
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// Gate exposes the request gate for transport middleware.
func (s *Service) Gate() *AuthGate { return s.gate }

// Credentials exposes the credential store for tooling (seed, CLI).
func (s *Service) Credentials() *CredentialStore { return s.store }

// issue signs a token for u. After a password change the token is
// issued no earlier than the change, so it survives AuthGate.
func (s *Service) issue(u domain.User) (string, error) {
	var (
		tok string
		err error
	)
	if u.PasswordChangedAt != nil {
		tok, err = s.tokens.IssueAt(u.ID, *u.PasswordChangedAt)
	} else {
		tok, err = s.tokens.Issue(u.ID)
	}
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return tok, nil
}

func (s *Service) timingDummy(ctx context.Context) (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash, nil
	}
	h, err := s.store.hasher.Hash(context.WithoutCancel(ctx), "timing-equalizer-password")
	if err != nil {
		return "", err
	}
	s.dummyHash = h
	return h, nil
}
