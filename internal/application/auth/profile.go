package auth

import (
	"context"
	"strings"

	"github.com/baechuer/natours-auth/internal/domain"
)

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, id Identity) (domain.User, error) {
	return s.store.FindByID(ctx, id.UserID)
}

// UpdateMe changes the caller's name and/or email.
func (s *Service) UpdateMe(ctx context.Context, id Identity, p domain.ProfileUpdate) (domain.User, error) {
	audit := s.auditor("account.update", map[string]string{"user_id": id.UserID})

	u, err := s.store.UpdateProfile(ctx, id.UserID, p)
	if err != nil {
		audit("error", err, nil)
		return domain.User{}, err
	}

	audit("success", nil, nil)
	return u, nil
}

// DeleteMe deactivates the caller's own account.
func (s *Service) DeleteMe(ctx context.Context, id Identity) error {
	audit := s.auditor("account.deactivate", map[string]string{
		"actor_id":  id.UserID,
		"target_id": id.UserID,
	})

	if err := s.store.Deactivate(ctx, id.UserID); err != nil {
		audit("error", err, nil)
		return err
	}

	audit("success", nil, nil)
	return nil
}

// GetUser looks up any active account. Route access is decided by RoleGate.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.store.FindByID(ctx, userID)
}

// DeactivateUser lets an administrator deactivate another account.
// Hard rule enforced here (not in handlers): nobody deactivates themselves this way.
func (s *Service) DeactivateUser(ctx context.Context, actor Identity, targetUserID string) error {
	targetUserID = strings.TrimSpace(targetUserID)
	audit := s.auditor("account.deactivate", map[string]string{
		"actor_id":   actor.UserID,
		"actor_role": string(actor.Role),
		"target_id":  targetUserID,
	})

	if targetUserID == "" {
		err := domain.ErrMissingField("id")
		audit("error", err, nil)
		return err
	}
	if targetUserID == actor.UserID {
		err := domain.ErrCannotAffectSelf()
		audit("error", err, nil)
		return err
	}

	target, err := s.store.FindByID(ctx, targetUserID)
	if err != nil {
		audit("error", err, nil)
		return err
	}

	if err := s.store.Deactivate(ctx, target.ID); err != nil {
		audit("error", err, nil)
		return err
	}

	audit("success", nil, map[string]string{"target_role": string(target.Role)})
	return nil
}
