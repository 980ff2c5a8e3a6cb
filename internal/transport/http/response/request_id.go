package response

import (
	"net/http"

	"github.com/baechuer/natours-auth/internal/logger"
)

// RequestIDFromContext returns the id set by the RequestID middleware.
func RequestIDFromContext(r *http.Request) string {
	return logger.RequestID(r.Context())
}
