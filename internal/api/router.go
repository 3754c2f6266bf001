package api

import (
	"net/http"
	"time"

	"novalabs_hub/internal/api/handler"
	"novalabs_hub/internal/api/middleware"
	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	labService *service.LabService,
	progressService *service.ProgressService,
	sessionService *service.SessionService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies a bearer token when present and puts claims in context.
	// Enforcement happens in middleware.Authenticator on protected groups.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		// Everything else requires a valid token.
		v1.Group(func(protected chi.Router) {
			protected.Use(middleware.Authenticator)

			labHandler := handler.NewLabHandler(labService)
			protected.Route("/labs", labHandler.RegisterRoutes)

			progressHandler := handler.NewProgressHandler(progressService)
			protected.Route("/progress", progressHandler.RegisterRoutes)

			sessionHandler := handler.NewSessionHandler(sessionService)
			protected.Route("/sessions", sessionHandler.RegisterRoutes)

			adminHandler := handler.NewAdminHandler(progressService, authService)
			protected.Route("/admin", adminHandler.RegisterRoutes)
		})
	})

	return r
}
