/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/students/*   Per-student status
  /api/groups/*     Group rollups and payment generation
  /api/payments/*   Payment transitions (paid, sweep)
  /api/reminders    Reminder eligibility
  /api/stats        Global rollup
  /api/demo/seed    Demo data (dev only)

SECURITY NOTE:
  No authentication middleware. The surrounding platform fronts this
  service and owns auth/session handling.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Student status
		r.Route("/students/{id}", func(r chi.Router) {
			r.Get("/status", h.GetStudentOverallStatus)
			r.Get("/groups/{groupID}/status", h.GetStudentGroupStatus)
		})

		// Group rollups and generation
		r.Route("/groups/{id}", func(r chi.Router) {
			r.Get("/stats", h.GetGroupStats)
			r.Post("/payments/generate", h.GeneratePayments)
		})

		// Payment transitions
		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/paid", h.MarkPaymentPaid)
			r.Post("/sweep", h.SweepOverdue)
		})

		// Reminders and global stats
		r.Get("/reminders", h.ListReminders)
		r.Get("/stats", h.GetGlobalStats)

		// Demo data (dev only)
		r.Post("/demo/seed", h.SeedDemo)
	})

	return r
}
