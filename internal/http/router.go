package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/veriqo/server/internal/auth"
	"github.com/veriqo/server/internal/http/handlers"
	"github.com/veriqo/server/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(authHandler *handlers.AuthHandler, profileHandler *handlers.ProfileHandler, authService *auth.Service) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/signin", authHandler.HandleSignin)
		r.Post("/signin/otp-verification", authHandler.HandleLoginOTPVerification)
		r.Post("/otp-verification", authHandler.HandleOTPVerification)
		r.Get("/resend-otp/{phone}", authHandler.HandleResendOTP)
		r.Get("/magic-link/{email}", authHandler.HandleMagicLink)
		r.Get("/forgot-password/{email}", authHandler.HandleForgotPassword)
		r.Patch("/reset-password/{email}/{token}", authHandler.HandleResetPassword)
		r.Get("/logs", authHandler.HandleReadLogs)
	})

	// Protected routes (require valid JWT)
	r.Route("/profile", func(r chi.Router) {
		r.Use(middleware.Authenticate(authService))
		r.Get("/me", profileHandler.HandleMe)
		r.Post("/info", profileHandler.HandleSubmitInfo)
		r.Post("/image", profileHandler.HandleUploadImage)
		r.Get("/verification-requests", profileHandler.HandleListPending)
		r.Patch("/verification-requests/{id}", profileHandler.HandleDecide)
	})

	return r
}
