package http_handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
	"github.com/baechuer/natours-auth/internal/transport/http/dto"
	"github.com/baechuer/natours-auth/internal/transport/http/middleware"
	"github.com/baechuer/natours-auth/internal/transport/http/response"
)

// UserHandler serves the account routes behind the request gate.
type UserHandler struct {
	svc *auth.Service
}

func NewUserHandler(svc *auth.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
	}
	return id, ok
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	u, err := h.svc.Me(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewUserData(u))
}

// UpdateMe handles PATCH /update-me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.UpdateMeRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if req.TouchesPassword() {
		response.WriteError(w, r, domain.ErrPasswordNotAllowed())
		return
	}
	if err := dto.Validate(req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	u, err := h.svc.UpdateMe(r.Context(), id, domain.ProfileUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewUserData(u))
}

// DeleteMe handles DELETE /delete-me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteMe(r.Context(), id); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

// GetUser handles GET /{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewUserData(u))
}

// DeleteUser handles DELETE /{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeactivateUser(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}
