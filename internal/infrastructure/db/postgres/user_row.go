package postgres

import (
	"database/sql"
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

const userColumns = `id, name, email, role, password_hash, password_changed_at,
       password_reset_token_hash, password_reset_expires_at, active, created_at`

type userRow struct {
	ID                     string
	Name                   string
	Email                  string
	Role                   string
	PasswordHash           string
	PasswordChangedAt      sql.NullTime
	PasswordResetTokenHash sql.NullString
	PasswordResetExpiresAt sql.NullTime
	Active                 bool
	CreatedAt              time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Name,
		&ur.Email,
		&ur.Role,
		&ur.PasswordHash,
		&ur.PasswordChangedAt,
		&ur.PasswordResetTokenHash,
		&ur.PasswordResetExpiresAt,
		&ur.Active,
		&ur.CreatedAt,
	)
	return ur, err
}

func (ur userRow) toDomain() domain.User {
	u := domain.User{
		ID:           ur.ID,
		Name:         ur.Name,
		Email:        ur.Email,
		Role:         domain.Role(ur.Role),
		PasswordHash: ur.PasswordHash,
		Active:       ur.Active,
		CreatedAt:    ur.CreatedAt,
	}
	if ur.PasswordChangedAt.Valid {
		t := ur.PasswordChangedAt.Time
		u.PasswordChangedAt = &t
	}
	if ur.PasswordResetTokenHash.Valid && ur.PasswordResetExpiresAt.Valid {
		h := ur.PasswordResetTokenHash.String
		exp := ur.PasswordResetExpiresAt.Time
		u.PasswordResetTokenHash = &h
		u.PasswordResetExpiresAt = &exp
	}
	return u
}
