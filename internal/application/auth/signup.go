package auth

import (
	"context"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Signup creates a regular user account and signs it in.
// Public signup never grants an elevated role.
func (s *Service) Signup(ctx context.Context, in NewAccount) (AuthResult, error) {
	audit := s.auditor("auth.signup", nil)

	in.Role = domain.RoleUser
	u, err := s.store.Create(ctx, in)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}

	tok, err := s.issue(u)
	if err != nil {
		audit("error", err, map[string]string{"user_id": u.ID})
		return AuthResult{}, err
	}

	audit("success", nil, map[string]string{"user_id": u.ID, "email": u.Email})
	return AuthResult{User: u, Token: tok}, nil
}
