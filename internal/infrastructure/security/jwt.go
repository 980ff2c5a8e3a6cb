package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
)

// JWTIssuer signs HS256 session tokens carrying only the subject and issue time.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret string, issuer string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// sessionClaims keeps a nanosecond issue time next to the standard
// second-precision iat, for comparison with password change times.
type sessionClaims struct {
	IssuedAtNs int64 `json:"iat_ns"`
	jwt.RegisteredClaims
}

func (s *JWTIssuer) Issue(userID string) (string, error) {
	return s.IssueAt(userID, time.Time{})
}

func (s *JWTIssuer) IssueAt(userID string, notBefore time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.ErrTokenSignFailed(errors.New("empty subject"))
	}

	iat := s.now()
	if notBefore.After(iat) {
		iat = notBefore
	}

	claims := sessionClaims{
		IssuedAtNs: iat.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(s.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *JWTIssuer) Verify(token string) (auth.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		// Only a correctly signed token can report expiry.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.TokenClaims{}, domain.ErrTokenExpired()
		}
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	var iat time.Time
	switch {
	case claims.IssuedAtNs > 0:
		iat = time.Unix(0, claims.IssuedAtNs)
	case claims.IssuedAt != nil:
		iat = claims.IssuedAt.Time
	default:
		return auth.TokenClaims{}, domain.ErrTokenInvalid()
	}

	return auth.TokenClaims{
		UserID:    claims.Subject,
		IssuedAt:  iat,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
