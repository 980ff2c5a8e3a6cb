package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/natours-auth/internal/domain"
)

// UserRepo is the Postgres implementation of auth.UserRepo.
// All timestamps come from the database clock (NOW()).
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// parseID rejects ids that cannot be a primary key, so they read as
// not found instead of a uuid cast error from the server.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// queryUser runs q and maps no-rows to notFound.
func (r *UserRepo) queryUser(ctx context.Context, notFound *domain.Error, q string, args ...any) (domain.User, error) {
	ur, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, notFound
		}
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailTaken()
		}
		return domain.User{}, domain.ErrStoreUnavailable(err)
	}
	return ur.toDomain(), nil
}

// ---------- auth.UserRepo ----------

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

	const q = `
INSERT INTO users (id, name, email, role, password_hash, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING ` + userColumns + `;
`
	return r.queryUser(ctx, domain.ErrUserNotFound(), q, u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	const q = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1
LIMIT 1;
`
	return r.queryUser(ctx, domain.ErrUserNotFound(), q, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	id, ok := parseID(id)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}

	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1;
`
	return r.queryUser(ctx, domain.ErrUserNotFound(), q, id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID, newHash string) (domain.User, error) {
	userID, ok := parseID(userID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if newHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}

	// password_changed_at never moves backwards.
	const q = `
UPDATE users
SET password_hash = $2,
    password_changed_at = GREATEST(NOW(), COALESCE(password_changed_at, NOW())),
    password_reset_token_hash = NULL,
    password_reset_expires_at = NULL
WHERE id = $1 AND active
RETURNING ` + userColumns + `;
`
	return r.queryUser(ctx, domain.ErrUserNotFound(), q, userID, newHash)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	userID, ok := parseID(userID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}

	const q = `
UPDATE users
SET name  = COALESCE($2, name),
    email = COALESCE($3, email)
WHERE id = $1 AND active
RETURNING ` + userColumns + `;
`
	return r.queryUser(ctx, domain.ErrUserNotFound(), q, userID, nullable(p.Name), nullable(p.Email))
}

func (r *UserRepo) Deactivate(ctx context.Context, userID string) error {
	userID, ok := parseID(userID)
	if !ok {
		return domain.ErrUserNotFound()
	}

	const q = `
UPDATE users
SET active = FALSE,
    password_reset_token_hash = NULL,
    password_reset_expires_at = NULL
WHERE id = $1 AND active;
`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) SetResetToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) (time.Time, error) {
	userID, ok := parseID(userID)
	if !ok {
		return time.Time{}, domain.ErrUserNotFound()
	}
	if tokenHash == "" {
		return time.Time{}, domain.ErrMissingField("token_hash")
	}

	const q = `
UPDATE users
SET password_reset_token_hash = $2,
    password_reset_expires_at = NOW() + ($3::bigint * INTERVAL '1 millisecond')
WHERE id = $1 AND active
RETURNING password_reset_expires_at;
`
	var exp time.Time
	if err := r.db.QueryRowContext(ctx, q, userID, tokenHash, ttl.Milliseconds()).Scan(&exp); err != nil {
		if isNoRows(err) {
			return time.Time{}, domain.ErrUserNotFound()
		}
		return time.Time{}, domain.ErrStoreUnavailable(err)
	}
	return exp, nil
}

func (r *UserRepo) ClearResetToken(ctx context.Context, userID, tokenHash string) error {
	const q = `
UPDATE users
SET password_reset_token_hash = NULL,
    password_reset_expires_at = NULL
WHERE id = $1 AND password_reset_token_hash = $2;
`
	userID, ok := parseID(userID)
	if !ok {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, q, userID, tokenHash); err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	return nil
}

func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrInvalidResetToken()
	}

	const q = `
SELECT ` + userColumns + `
FROM users
WHERE password_reset_token_hash = $1
  AND password_reset_expires_at > NOW()
  AND active
LIMIT 1;
`
	return r.queryUser(ctx, domain.ErrInvalidResetToken(), q, tokenHash)
}

// ConsumeResetToken relies on row locking: a concurrent consumer blocks on
// the same row, then re-evaluates the WHERE clause and matches nothing.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrInvalidResetToken()
	}
	if newHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}

	const q = `
UPDATE users
SET password_hash = $2,
    password_changed_at = GREATEST(NOW(), COALESCE(password_changed_at, NOW())),
    password_reset_token_hash = NULL,
    password_reset_expires_at = NULL
WHERE password_reset_token_hash = $1
  AND password_reset_expires_at > NOW()
  AND active
RETURNING ` + userColumns + `;
`
	return r.queryUser(ctx, domain.ErrInvalidResetToken(), q, tokenHash, newHash)
}

// Ping reports whether the database is reachable.
func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
