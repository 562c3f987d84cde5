package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ecomauth/server/internal/auth"
	"github.com/ecomauth/server/internal/http/handlers"
	"github.com/ecomauth/server/internal/middleware"
	"github.com/ecomauth/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured. Google
// routes are registered only when the bridge is configured.
func NewRouter(authHandler *handlers.AuthHandler, codec *auth.TokenCodec, users repo.UserRepo, googleEnabled bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/otp", authHandler.HandleRequestOTP)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/forgot-password", authHandler.HandleForgotPassword)

		if googleEnabled {
			r.Get("/google/url", authHandler.HandleGoogleURL)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}

		// Protected 2FA management
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(codec, users))
			r.Post("/2fa/setup", authHandler.HandleSetup2FA)
			r.Post("/2fa/disable", authHandler.HandleDisable2FA)
		})
	})

	// Protected routes (require valid access token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(codec, users))
		r.Get("/me", authHandler.HandleMe)
	})

	return r
}
