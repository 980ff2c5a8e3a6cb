package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/natours-auth/internal/application/auth"
	"github.com/baechuer/natours-auth/internal/domain"
	"github.com/baechuer/natours-auth/internal/transport/http/middleware"
	"github.com/baechuer/natours-auth/internal/transport/http/response"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Signup(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	UpdatePassword(w http.ResponseWriter, r *http.Request)
}

type UserHandler interface {
	Me(w http.ResponseWriter, r *http.Request)
	UpdateMe(w http.ResponseWriter, r *http.Request)
	DeleteMe(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

// RateLimits holds the per-route budgets.
type RateLimits struct {
	Signup         middleware.FixedWindowConfig
	Login          middleware.FixedWindowConfig
	ForgotPassword middleware.FixedWindowConfig
	ResetPassword  middleware.FixedWindowConfig
	UpdatePassword middleware.FixedWindowConfig

	// TrustProxyHeaders applies to every route above.
	TrustProxyHeaders bool
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Signup:         middleware.FixedWindowConfig{RouteKey: "signup", Limit: 5, Window: time.Minute},
		Login:          middleware.FixedWindowConfig{RouteKey: "login", Limit: 10, Window: time.Minute},
		ForgotPassword: middleware.FixedWindowConfig{RouteKey: "forgot_password", Limit: 3, Window: 10 * time.Minute},
		ResetPassword:  middleware.FixedWindowConfig{RouteKey: "reset_password", Limit: 10, Window: 10 * time.Minute},
		UpdatePassword: middleware.FixedWindowConfig{RouteKey: "update_password", Limit: 5, Window: time.Minute},
	}
}

var (
	// GET /{id}
	viewUserRoles = auth.AllowRoles(domain.RoleAdmin, domain.RoleLeadGuide)
	// DELETE /{id}
	deleteUserRoles = auth.AllowRoles(domain.RoleAdmin)
)

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler
	Users  UserHandler

	Gate middleware.Authenticator
	// Limiter may be nil; routes then use the in-process limiter.
	Limiter middleware.RateLimiter
	Limits  RateLimits
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("nil Users handler")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("nil Gate")
	}

	writeErr := response.WriteError
	authMW := middleware.Auth(deps.Gate, writeErr)
	limit := func(cfg middleware.FixedWindowConfig) func(http.Handler) http.Handler {
		cfg.TrustProxy = deps.Limits.TrustProxyHeaders
		return middleware.RateLimitFixedWindow(deps.Limiter, cfg, writeErr)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	// Inside Metrics so recovered panics are counted as 500s.
	r.Use(middleware.Recover(writeErr))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, r, domain.ErrRouteNotFound(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, r, domain.ErrRouteNotFound(r.URL.Path))
	})

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/users", func(r chi.Router) {
		// --- Public ---
		r.With(limit(deps.Limits.Signup)).Post("/signup", deps.Auth.Signup)
		r.With(limit(deps.Limits.Login)).Post("/login", deps.Auth.Login)
		r.With(limit(deps.Limits.ForgotPassword)).Post("/forgot-password", deps.Auth.ForgotPassword)
		r.With(limit(deps.Limits.ResetPassword)).Patch("/reset-password/{token}", deps.Auth.ResetPassword)

		// --- Authenticated ---
		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.With(limit(deps.Limits.UpdatePassword)).Patch("/update-password", deps.Auth.UpdatePassword)
			r.Get("/me", deps.Users.Me)
			r.Patch("/update-me", deps.Users.UpdateMe)
			r.Delete("/delete-me", deps.Users.DeleteMe)

			r.With(middleware.RequireRoles(viewUserRoles, writeErr)).Get("/{id}", deps.Users.GetUser)
			r.With(middleware.RequireRoles(deleteUserRoles, writeErr)).Delete("/{id}", deps.Users.DeleteUser)
		})
	})

	return r, nil
}
