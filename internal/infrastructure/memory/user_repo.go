package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

// UserRepo is an in-process auth.UserRepo for local development and tests.
// Timestamps come from the repo's own clock, the way NOW() does in Postgres.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string // email -> userID
	byReset map[string]string // reset token hash -> userID

	now func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
		byReset: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock replaces the store clock. Tests use it to move time.
func (r *UserRepo) WithClock(now func() time.Time) *UserRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func ptr[T any](v T) *T { return &v }

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if u.PasswordHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrEmailTaken()
	}
	if _, exists := r.byID[u.ID]; exists {
		return domain.User{}, domain.ErrInternal(nil)
	}

	u.Active = true
	u.CreatedAt = r.now()
	u.PasswordChangedAt = nil
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpiresAt = nil

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

// activeLocked returns the active account with id. Callers hold mu.
func (r *UserRepo) activeLocked(id string) (domain.User, bool) {
	u, ok := r.byID[id]
	if !ok || !u.Active {
		return domain.User{}, false
	}
	return u, true
}

// clearResetLocked drops any pending reset token. Callers hold mu.
func (r *UserRepo) clearResetLocked(u *domain.User) {
	if u.PasswordResetTokenHash != nil {
		delete(r.byReset, *u.PasswordResetTokenHash)
	}
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpiresAt = nil
}

// setPasswordLocked stores newHash and stamps the change time.
// The change time never moves backwards.
func (r *UserRepo) setPasswordLocked(u *domain.User, newHash string) {
	changed := r.now()
	if u.PasswordChangedAt != nil && u.PasswordChangedAt.After(changed) {
		changed = *u.PasswordChangedAt
	}
	u.PasswordHash = newHash
	u.PasswordChangedAt = ptr(changed)
	r.clearResetLocked(u)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID, newHash string) (domain.User, error) {
	if newHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.activeLocked(userID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	r.setPasswordLocked(&u, newHash)
	r.byID[userID] = u
	return u, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.activeLocked(userID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}

	if p.Email != nil {
		email := domain.NormalizeEmail(*p.Email)
		if owner, taken := r.byEmail[email]; taken && owner != userID {
			return domain.User{}, domain.ErrEmailTaken()
		}
		delete(r.byEmail, u.Email)
		u.Email = email
		r.byEmail[email] = userID
	}
	if p.Name != nil {
		u.Name = *p.Name
	}

	r.byID[userID] = u
	return u, nil
}

func (r *UserRepo) Deactivate(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.activeLocked(userID)
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Active = false
	r.clearResetLocked(&u)
	r.byID[userID] = u
	return nil
}

func (r *UserRepo) SetResetToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) (time.Time, error) {
	if tokenHash == "" {
		return time.Time{}, domain.ErrMissingField("token_hash")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.activeLocked(userID)
	if !ok {
		return time.Time{}, domain.ErrUserNotFound()
	}

	r.clearResetLocked(&u)
	exp := r.now().Add(ttl)
	u.PasswordResetTokenHash = ptr(tokenHash)
	u.PasswordResetExpiresAt = ptr(exp)

	r.byID[userID] = u
	r.byReset[tokenHash] = userID
	return exp, nil
}

func (r *UserRepo) ClearResetToken(ctx context.Context, userID, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
		return nil
	}
	r.clearResetLocked(&u)
	r.byID[userID] = u
	return nil
}

// resetOwnerLocked finds the active account holding an unexpired tokenHash.
func (r *UserRepo) resetOwnerLocked(tokenHash string) (domain.User, bool) {
	id, ok := r.byReset[tokenHash]
	if !ok {
		return domain.User{}, false
	}
	u, ok := r.activeLocked(id)
	if !ok || !u.HasPendingReset(r.now()) || *u.PasswordResetTokenHash != tokenHash {
		return domain.User{}, false
	}
	return u, true
}

func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrInvalidResetToken()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.resetOwnerLocked(tokenHash)
	if !ok {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	return u, nil
}

// ConsumeResetToken checks and writes under one lock, so at most one caller
// wins for a given token.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	if newHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.resetOwnerLocked(tokenHash)
	if !ok {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	r.setPasswordLocked(&u, newHash)
	r.byID[u.ID] = u
	return u, nil
}

// Ping always succeeds.
func (r *UserRepo) Ping(ctx context.Context) error { return nil }
