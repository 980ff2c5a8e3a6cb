package middleware

import (
	"net/http"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
)

// RequireRoles admits callers whose role is in allowed.
// It must run after Auth; without an identity it fails as unauthenticated.
func RequireRoles(allowed auth.RoleSet, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}
			if err := auth.Authorize(id, allowed); err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
