package domain

import (
	"strings"
	"time"
)

// User is a persisted account. PasswordHash never leaves the service.
type User struct {
	ID                string
	Name              string
	Email             string
	Role              Role
	PasswordHash      string
	PasswordChangedAt *time.Time

	// Reset fields are set and cleared together.
	PasswordResetTokenHash *string
	PasswordResetExpiresAt *time.Time

	Active    bool
	CreatedAt time.Time
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Times are compared at full precision.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}

// HasPendingReset reports whether an unexpired reset token is stored at now.
func (u User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetTokenHash != nil &&
		u.PasswordResetExpiresAt != nil &&
		u.PasswordResetExpiresAt.After(now)
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileUpdate carries the fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil
}

// Notification is an outbound message to an account holder.
type Notification struct {
	To      string
	Subject string
	Body    string
}
