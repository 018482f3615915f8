/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the calculator page
  5. Session:    Resolves the history session (API routes only)

ROUTES:
  GET    /api/health
  GET    /api/schedule
  GET    /api/assessments        session history, most recent first
  POST   /api/assessments        compute and record
  DELETE /api/assessments        clear session history
  GET    /api/assessments/{id}

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Session resolution
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/schedule", h.GetSchedule)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)
			r.Route("/assessments", func(r chi.Router) {
				r.Get("/", h.ListAssessments)
				r.Post("/", h.CreateAssessment)
				r.Delete("/", h.ClearAssessments)
				r.Get("/{id}", h.GetAssessment)
			})
		})
	})

	return r
}
