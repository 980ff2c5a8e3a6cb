package http_handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
	"github.com/baechuer/natours-auth/internal/logger"
	"github.com/baechuer/natours-auth/internal/transport/http/dto"
	"github.com/baechuer/natours-auth/internal/transport/http/middleware"
	"github.com/baechuer/natours-auth/internal/transport/http/response"
)

// ResetRoutePath is where reset links point, relative to the host.
const ResetRoutePath = "/api/v1/users/reset-password/"

type AuthHandler struct {
	svc *auth.Service
	// resetBaseURL prefixes the raw reset token. Empty means derive it
	// from the incoming request.
	resetBaseURL string
}

func NewAuthHandler(svc *auth.Service, resetBaseURL string) *AuthHandler {
	return &AuthHandler{svc: svc, resetBaseURL: resetBaseURL}
}

// Signup handles POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), auth.NewAccount{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Msg("user_signed_up")

	response.Created(w, res.Token, dto.NewUserData(res.User))
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.LoginAttemptsTotal.WithLabelValues(errorCode(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.LoginAttemptsTotal.WithLabelValues("success").Inc()

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Msg("user_logged_in")

	response.Token(w, res.Token)
}

// ForgotPassword handles POST /forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email, h.linkBase(r)); err != nil {
		middleware.PasswordResetTotal.WithLabelValues("request", errorCode(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.PasswordResetTotal.WithLabelValues("request", "success").Inc()

	response.Message(w, "Token sent to email")
}

// ResetPassword handles PATCH /reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if err != nil {
		middleware.PasswordResetTotal.WithLabelValues("consume", errorCode(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.PasswordResetTotal.WithLabelValues("consume", "success").Inc()

	response.Token(w, res.Token)
}

// UpdatePassword handles PATCH /update-password
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	var req dto.UpdatePasswordRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.UpdatePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.Token(w, res.Token)
}

// linkBase is the URL prefix the raw reset token is appended to.
func (h *AuthHandler) linkBase(r *http.Request) string {
	if h.resetBaseURL != "" {
		return strings.TrimRight(h.resetBaseURL, "/") + "/"
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + ResetRoutePath
}

func errorCode(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}
