/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/plan/*          Contribution plan, what-if, timeline
  /api/obligations/*   Obligation lifecycle + escalations
  /api/incomes         Income sources
  /api/settings        Cap, cycle, opening balance
  /api/reconcile       Manual escalation sweep
  /api/scenarios/*     Demo scenarios

SECURITY NOTE:
  No authentication middleware. The X-User-ID header scopes data and is
  trusted as-is; front it with a real auth layer before exposing publicly.

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Plan routes
		r.Route("/plan", func(r chi.Router) {
			r.Get("/", h.GetPlan)
			r.Post("/whatif", h.WhatIf)
			r.Get("/timeline", h.GetTimeline)
			r.Post("/timeline", h.TimelineWhatIf)
		})

		// Obligation routes
		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", h.ListObligations)
			r.Post("/", h.CreateObligation)
			r.Get("/{id}", h.GetObligation)
			r.Delete("/{id}", h.ArchiveObligation)
			r.Post("/{id}/pause", h.PauseObligation)
			r.Post("/{id}/resume", h.ResumeObligation)
			r.Post("/{id}/escalations", h.CreateEscalation)
		})

		// Income routes
		r.Route("/incomes", func(r chi.Router) {
			r.Get("/", h.ListIncomes)
			r.Post("/", h.CreateIncome)
		})

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		// Reconciliation trigger (the cron scheduler uses the same sweep)
		r.Post("/reconcile", h.Reconcile)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
