/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: Request-scoped slog logger + completion line
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the web front end
  5. Auth:          JWT bearer token on every /api route
  6. Rate limit:    Punch submissions only, per tenant/employee

ROUTE GROUPS:
  /api/punches/*        Caller's own punches
  /api/employees/*      Day summaries
  /api/admin/*          Manager-only configuration
  /healthz              Liveness (no auth)
  /readyz               Readiness, pings the store (no auth)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth, logging and rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"
)

// RouterOptions are the cross-cutting pieces the router needs besides the
// handler.
type RouterOptions struct {
	Logger         *slog.Logger
	Auth           Authenticator
	PunchLimiter   *limiter.Limiter // nil disables punch rate limiting
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", Health)
	r.Get("/readyz", h.Ready)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		// Punch routes
		r.Route("/punches", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if opts.PunchLimiter != nil {
					r.Use(PunchRateLimit(opts.PunchLimiter))
				}
				r.Post("/", h.RegisterPunch)
			})
			r.Get("/today", h.GetToday)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/days/{date}", h.GetDay)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireManager)
			r.Put("/employees/{id}/pay", h.SetPayProfile)
			r.Put("/settings", h.SetSettings)
		})
	})

	return r
}
