package auth

import (
	"context"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Login authenticates by email and password and issues a session token.
// IMPORTANT: unknown emails and wrong passwords fail identically, including timing.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("auth.login", map[string]string{"email": email})

	if email == "" || password == "" {
		err := domain.ErrMissingCredentials()
		audit("error", err, nil)
		return AuthResult{}, err
	}

	u, err := s.store.FindByEmail(ctx, email, true)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			audit("error", err, nil)
			return AuthResult{}, err
		}
		// Burn a comparable amount of work before failing. If the dummy
		// cannot be built the caller sees the same error a known email
		// would get from a saturated pool.
		dummy, hashErr := s.timingDummy(ctx)
		if hashErr != nil {
			audit("error", hashErr, nil)
			return AuthResult{}, hashErr
		}
		if _, cmpErr := s.store.VerifyPassword(ctx, password, dummy); cmpErr != nil {
			audit("error", cmpErr, nil)
			return AuthResult{}, cmpErr
		}
		err = domain.ErrIncorrectPassword()
		audit("error", err, map[string]string{"reason": "unknown_email"})
		return AuthResult{}, err
	}

	ok, err := s.store.VerifyPassword(ctx, password, u.PasswordHash)
	if err != nil {
		audit("error", err, map[string]string{"user_id": u.ID})
		return AuthResult{}, err
	}
	if !ok {
		err := domain.ErrIncorrectPassword()
		audit("error", err, map[string]string{"user_id": u.ID, "reason": "password_mismatch"})
		return AuthResult{}, err
	}
	u.PasswordHash = ""

	tok, err := s.issue(u)
	if err != nil {
		audit("error", err, map[string]string{"user_id": u.ID})
		return AuthResult{}, err
	}

	audit("success", nil, map[string]string{"user_id": u.ID})
	return AuthResult{User: u, Token: tok}, nil
}
