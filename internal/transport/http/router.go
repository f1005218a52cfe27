package http

import (
	"net/http"

	"github.com/go-auth-api/internal/application/account"
	"github.com/go-auth-api/internal/application/authz"
	"github.com/go-auth-api/internal/application/user"
	"github.com/go-auth-api/internal/config"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/pkg/code"
	"github.com/go-auth-api/internal/pkg/secret"
	"github.com/go-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       UserRepository
	PasswordHasher secret.Hasher
	CodeHasher     secret.Hasher
	Codes          code.Generator
	JWTProvider    *jwtinfra.Provider
	Notifier       Notifier
	// Locker is optional; nil selects in-process locks.
	Locker Locker
	// Background runs fire-and-forget sends; nil starts a plain goroutine.
	Background func(func())
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	accountDeps := account.ServiceDeps{
		UserRepo:       deps.UserRepo,
		PasswordHasher: deps.PasswordHasher,
		CodeHasher:     deps.CodeHasher,
		Codes:          deps.Codes,
		Tokens:         deps.JWTProvider,
		Notifier:       deps.Notifier,
		Locker:         deps.Locker,
		NotifyTimeout:  cfg.NotifyTimeout,
		Background:     deps.Background,
	}
	accountSvc := account.NewService(accountDeps)
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, PasswordHasher: deps.PasswordHasher})
	gate := authz.NewGate(deps.UserRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(accountSvc)
	userH := handler.NewUserHandler(userSvc, accountSvc)

	authMw := appmiddleware.Auth(deps.JWTProvider)
	manageMw := appmiddleware.RequireManage(gate, "user")

	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/api/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Post("/users", userH.Register)
		r.Post("/auth/verifyAcc", authH.VerifyAccount)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/request-password-reset", authH.RequestPasswordReset)
		r.Patch("/auth/reset-password/{email}", authH.ResetPassword)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/all", userH.List)
			r.Get("/users/email/{email}", userH.GetByEmail)
			r.Get("/users/{user}", userH.GetByUsername)

			// Owner or admin only
			r.Group(func(r chi.Router) {
				r.Use(manageMw)

				r.Put("/users/{user}", userH.Update)
				r.Patch("/users/{user}", userH.Patch)
				r.Delete("/users/{user}", userH.Delete)
			})
		})
	})

	return r
}
