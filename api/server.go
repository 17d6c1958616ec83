/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. httprate:   Per-IP limit on write routes only

ROUTE GROUPS:
  /api/rules, /api/settings/*   Engine configuration
  /api/balances/*               Balance period records
  /api/sectors/*, /api/weeks/*  Week reports
  /api/requests/*               Extra-staff requests and workflow
  /api/scenarios/*              Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	// CORSOrigins defaults to the local frontend dev servers.
	CORSOrigins []string

	// WriteLimitPerMinute caps POST/PUT calls per client IP. 0 disables it.
	WriteLimitPerMinute int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	writes := func(next http.Handler) http.Handler { return next }
	if opts.WriteLimitPerMinute > 0 {
		writes = httprate.Limit(opts.WriteLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Too many requests", nil)
			}),
		)
	}

	r.Route("/api", func(r chi.Router) {
		// Read routes
		r.Get("/health", h.Health)
		r.Get("/rules", h.GetRules)
		r.Get("/settings/daily-rate", h.GetDailyRate)
		r.Get("/balances", h.ListBalances)
		r.Get("/balances/overlaps", h.ListOverlaps)
		r.Get("/balances/{id}", h.GetBalance)
		r.Get("/balances/{id}/weeks", h.GetBalanceWeeks)
		r.Get("/sectors/{sector}/weeks/{date}", h.GetSectorWeek)
		r.Get("/weeks/{date}", h.ListWeek)
		r.Get("/requests", h.ListRequests)
		r.Get("/requests/{id}", h.GetRequest)
		r.Get("/scenarios", h.ListScenarios)
		r.Get("/scenarios/current", h.GetCurrentScenario)

		// Write routes
		r.Group(func(r chi.Router) {
			r.Use(writes)

			r.Put("/settings/daily-rate", h.SetDailyRate)

			r.Post("/balances/preview", h.PreviewBalance)
			r.Post("/balances", h.CreateBalance)
			r.Put("/balances/{id}", h.UpdateBalance)

			r.Post("/requests/preview", h.PreviewRequest)
			r.Post("/requests", h.CreateRequest)
			r.Post("/requests/{id}/approve", h.ApproveRequest)
			r.Post("/requests/{id}/reject", h.RejectRequest)
			r.Post("/requests/{id}/cancel", h.CancelRequest)

			r.Post("/scenarios/load", h.LoadScenario)
			r.Post("/scenarios/reset", h.ResetDatabase)
		})
	})

	return r
}
