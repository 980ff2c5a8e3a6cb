package response

import (
	"errors"
	"net/http"

	"github.com/baechuer/natours-auth/internal/domain"
	"github.com/baechuer/natours-auth/internal/logger"
)

const genericMessage = "Something went very wrong!"

type ErrorBody struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteError converts an error into the JSON error envelope.
// Domain errors keep their safe message. Anything else is a defect: it is
// logged with full detail and answered with a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	payload := ErrorPayload{
		Code:      "internal_error",
		Message:   genericMessage,
		RequestID: RequestIDFromContext(r),
	}

	var de *domain.Error
	if errors.As(err, &de) {
		status = statusFromKind(de.Kind)
		payload.Code = de.Code
		payload.Message = de.Message
		payload.Meta = de.Meta
		if de.Kind == domain.KindInternal {
			payload.Message = genericMessage
			payload.Meta = nil
		}
	}

	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("code", payload.Code).
			Msg("request failed")
	}

	WriteJSON(w, status, ErrorBody{Status: statusWord(status), Error: payload})
}

// statusFromKind maps domain error kinds to HTTP status codes.
func statusFromKind(kind domain.ErrKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindService, domain.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// statusWord is "fail" for client errors and "error" for server errors.
func statusWord(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}
