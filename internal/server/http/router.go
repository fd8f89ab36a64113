package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/consejo/internal/common"
)

// Routes builds the router. Exposed so tests can drive it with httptest.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", common.AuthorizationHeaderName, "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.Post("/recovery/question", s.handleRecoveryQuestion)
			r.Post("/recovery/reset", s.handleRecoveryReset)
			r.Get("/security-questions", s.handleSecurityQuestions)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAccessToken)
			r.Get("/profile", s.handleProfile)
			r.Put("/profile/password", s.handleChangePassword)
			r.Put("/profile/security", s.handleUpdateSecurity)
		})
	})

	return r
}
