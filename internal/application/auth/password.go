package auth

import (
	"context"

	"github.com/baechuer/natours-auth/internal/domain"
)

// UpdatePassword changes the caller's password after re-checking the current one.
// Tokens issued before the change stop working; the returned token does not.
func (s *Service) UpdatePassword(ctx context.Context, id Identity, current, next, confirm string) (AuthResult, error) {
	audit := s.auditor("auth.password.update", map[string]string{"user_id": id.UserID})

	if current == "" {
		err := domain.ErrMissingField("currentPassword")
		audit("error", err, nil)
		return AuthResult{}, err
	}

	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}
	if !u.Active {
		err := domain.ErrAccountGone()
		audit("error", err, nil)
		return AuthResult{}, err
	}

	ok, err := s.store.VerifyPassword(ctx, current, u.PasswordHash)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}
	if !ok {
		err := domain.ErrCurrentPasswordWrong()
		audit("error", err, nil)
		return AuthResult{}, err
	}

	if err := checkNewPassword(next, confirm); err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}

	updated, err := s.store.UpdatePassword(ctx, u.ID, next)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}

	tok, err := s.issue(updated)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}

	audit("success", nil, nil)
	return AuthResult{User: updated, Token: tok}, nil
}

// ForgotPassword emails a reset link built from linkBase.
func (s *Service) ForgotPassword(ctx context.Context, email, linkBase string) error {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("auth.password.reset_request", map[string]string{"email": email})

	if email == "" {
		err := domain.ErrMissingEmail()
		audit("error", err, nil)
		return err
	}

	u, err := s.reset.Request(ctx, email, linkBase)
	if err != nil {
		audit("error", err, nil)
		return err
	}

	audit("success", nil, map[string]string{"user_id": u.ID})
	return nil
}

// ResetPassword consumes a reset token and signs the holder in.
func (s *Service) ResetPassword(ctx context.Context, rawToken, password, confirm string) (AuthResult, error) {
	audit := s.auditor("auth.password.reset", nil)

	res, err := s.reset.Consume(ctx, rawToken, password, confirm)
	if err != nil {
		audit("error", err, nil)
		return AuthResult{}, err
	}

	audit("success", nil, map[string]string{"user_id": res.User.ID})
	return res, nil
}
