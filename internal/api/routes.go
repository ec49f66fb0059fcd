package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, deps Deps, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if deps.Health != nil {
		r.Get("/health", deps.Health.HandleHealth)
		r.Get("/health/live", deps.Health.HandleLiveness)
		r.Get("/health/ready", deps.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy"}`))
		})
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", h.CreateSnapshot)
			r.Post("/load", h.LoadSnapshot)
			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/", h.GetSnapshot)
				r.Get("/unified.csv", h.DownloadUnified)
				r.Post("/score", h.ScoreSnapshot)
				r.Get("/scored.csv", h.DownloadScored)
				r.Get("/active-segments", h.ActiveSegments)
				r.Post("/suggest", h.SuggestRules)
			})
		})

		r.Get("/runs", h.ListRuns)
		r.Route("/rule-sets", func(r chi.Router) {
			r.Get("/", h.ListRuleSets)
			r.Post("/", h.SaveRuleSet)
			r.Get("/{name}", h.GetRuleSet)
			r.Get("/{name}/yaml", h.GetRuleSetYAML)
		})
	})

	return r
}
