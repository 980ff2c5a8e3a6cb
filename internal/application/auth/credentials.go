package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/baechuer/natours-auth/internal/domain"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	// Counted in characters, matching the users table CHECK.
	maxNameLen = 40
)

// NewAccount is the input to CredentialStore.Create.
type NewAccount struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            domain.Role
}

// CredentialStore owns account records and password verification.
type CredentialStore struct {
	users  UserRepo
	hasher PasswordHasher
}

func NewCredentialStore(users UserRepo, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{users: users, hasher: hasher}
}

// Create validates the input, hashes the password and persists the account.
// The returned user never carries the hash.
func (c *CredentialStore) Create(ctx context.Context, in NewAccount) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	if name == "" {
		return domain.User{}, domain.ErrMissingField("name")
	}
	if err := checkNameLength(name); err != nil {
		return domain.User{}, err
	}
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if err := checkNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return domain.User{}, err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.IsValidRole(string(role)) {
		return domain.User{}, domain.ErrInvalidRole(string(role))
	}

	hash, err := c.hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, err
	}

	created, err := c.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return domain.User{}, err
	}
	created.PasswordHash = ""
	return created, nil
}

// FindByEmail returns the active account for email. The hash is only
// populated when includeHash is set.
func (c *CredentialStore) FindByEmail(ctx context.Context, email string, includeHash bool) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingEmail()
	}

	u, err := c.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return domain.User{}, domain.ErrNoUserWithEmail()
		}
		return domain.User{}, err
	}
	if !u.Active {
		return domain.User{}, domain.ErrNoUserWithEmail()
	}
	if !includeHash {
		u.PasswordHash = ""
	}
	return u, nil
}

// FindByID returns the active account for id, without its hash.
func (c *CredentialStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}

	u, err := c.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if !u.Active {
		return domain.User{}, domain.ErrUserNotFound()
	}
	u.PasswordHash = ""
	return u, nil
}

// VerifyPassword never fails on mismatch; errors mean the check could not run.
func (c *CredentialStore) VerifyPassword(ctx context.Context, candidate, storedHash string) (bool, error) {
	if candidate == "" || storedHash == "" {
		return false, nil
	}
	return c.hasher.Compare(ctx, storedHash, candidate)
}

// UpdatePassword rehashes, stamps PasswordChangedAt and clears any pending reset.
func (c *CredentialStore) UpdatePassword(ctx context.Context, userID, newPassword string) (domain.User, error) {
	if err := checkPasswordLength(newPassword); err != nil {
		return domain.User{}, err
	}

	hash, err := c.hasher.Hash(ctx, newPassword)
	if err != nil {
		return domain.User{}, err
	}

	u, err := c.users.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// UpdateProfile changes name and/or email. It never touches the password or role.
func (c *CredentialStore) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return domain.User{}, domain.ErrInvalidField("name", "must not be empty")
		}
		if err := checkNameLength(name); err != nil {
			return domain.User{}, err
		}
		p.Name = &name
	}
	if p.Email != nil {
		email := domain.NormalizeEmail(*p.Email)
		if email == "" {
			return domain.User{}, domain.ErrInvalidField("email", "must not be empty")
		}
		p.Email = &email
	}
	if p.Empty() {
		return domain.User{}, domain.ErrNothingToUpdate()
	}

	u, err := c.users.UpdateProfile(ctx, userID, p)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// Deactivate soft-deletes the account. The record is retained.
func (c *CredentialStore) Deactivate(ctx context.Context, userID string) error {
	return c.users.Deactivate(ctx, userID)
}

func checkNameLength(name string) error {
	if utf8.RuneCountInString(name) > maxNameLen {
		return domain.ErrInvalidField("name", "must be at most 40 characters")
	}
	return nil
}

func checkNewPassword(password, confirm string) error {
	if password == "" {
		return domain.ErrMissingField("password")
	}
	if confirm == "" {
		return domain.ErrMissingField("passwordConfirm")
	}
	if err := checkPasswordLength(password); err != nil {
		return err
	}
	if password != confirm {
		return domain.ErrPasswordMismatch()
	}
	return nil
}

func checkPasswordLength(password string) error {
	if len(password) < minPasswordLen {
		return domain.ErrInvalidField("password", "must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return domain.ErrInvalidField("password", "must be at most 72 bytes")
	}
	return nil
}
