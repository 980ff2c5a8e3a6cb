package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/baechuer/natours-auth/internal/logger"
)

const (
	HeaderXRequestID = "X-Request-Id"
	maxRequestIDLen  = 128
)

// RequestID propagates a caller-supplied X-Request-Id or mints a UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(HeaderXRequestID))
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}

		w.Header().Set(HeaderXRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}
