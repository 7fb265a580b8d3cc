/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the crew app

ROUTE GROUPS:
  /api/workers/*     Workers, rates, shifts, time sheets, payroll
  /api/sync/*        Pending shifts and force sync
  /api/projects/*    Projects, phases, cost rollups, exports
  /api/phases/*      Phase costs and cost lines
  /api/scenarios/*   Demo scenarios (load is admin only)
  /api/reset         Database reset (admin only)

SECURITY NOTE:
  Only the admin routes are protected, with basic auth, and only when an
  admin login is configured.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the middleware around the handlers.
type RouterOptions struct {
	AllowedOrigins []string
	// AdminLogin enables basic auth on the admin routes when set.
	AdminLogin    string
	AdminPassword string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	admin := func(next http.Handler) http.Handler { return next }
	if opts.AdminLogin != "" {
		admin = middleware.BasicAuth("crew-engine", map[string]string{
			opts.AdminLogin: opts.AdminPassword,
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetWorker)

				r.Get("/rates", h.ListRates)
				r.Post("/rates", h.CreateRate)
				r.Get("/rates/effective", h.GetEffectiveRate)

				r.Get("/shift", h.GetShift)
				r.Post("/shift/start", h.StartShift)
				r.Post("/shift/break/start", h.StartBreak)
				r.Post("/shift/break/end", h.EndBreak)
				r.Post("/shift/end", h.EndShift)

				r.Get("/timesheets", h.ListTimeSheets)
				r.Post("/timesheets", h.CreateTimeSheetEntry)
				r.Get("/payroll", h.GetPayroll)
				r.Get("/payroll.xlsx", h.GetPayrollWorkbook)
			})
		})

		// Sync routes
		r.Route("/sync", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Post("/", h.ForceSync)
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Get("/{id}/phases", h.ListPhases)
			r.Post("/{id}/phases", h.CreatePhase)
			r.Get("/{id}/costs", h.GetProjectCosts)
			r.Get("/{id}/costs.xlsx", h.GetProjectCostsWorkbook)
			r.Get("/{id}/calendar.ics", h.GetCalendar)
		})

		// Phase routes
		r.Route("/phases/{id}", func(r chi.Router) {
			r.Get("/costs", h.GetPhaseCosts)
			r.Post("/materials", h.CreateMaterial)
			r.Post("/labor", h.CreateLabor)
			r.Post("/expenses", h.CreateExpense)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(admin).Post("/load", h.LoadScenario)
		})

		r.With(admin).Post("/reset", h.ResetDatabase)
	})

	return r
}
