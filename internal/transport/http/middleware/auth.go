package middleware

import (
	"context"
	"net/http"

	"github.com/baechuer/natours-auth/internal/application/auth"
)

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Authenticator turns an Authorization header into an identity.
// *auth.AuthGate implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (auth.Identity, error)
}

// Auth runs the request gate and injects the identity into the request
// context. Any failure ends the request with the gate's error.
func Auth(gate Authenticator, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
