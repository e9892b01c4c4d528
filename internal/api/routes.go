package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/memorial-crm/internal/metrics"
	"github.com/ignite/memorial-crm/internal/segmentation"
	"github.com/ignite/memorial-crm/internal/service/customersync"
	"github.com/ignite/memorial-crm/internal/service/searchlist"
)

// Deps are the services the router exposes. Backfill, Health and Metrics
// are optional.
type Deps struct {
	Customers      *customersync.Service
	Lists          *searchlist.Service
	Engine         *segmentation.Engine
	Backfill       *BackfillRunner
	Health         *HealthChecker
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// SetupRoutes configures all API routes.
func SetupRoutes(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := d.Health
	if health == nil {
		health = NewHealthChecker()
	}
	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	customers := NewCustomerHandlers(d.Customers, d.Engine)
	lists := NewSearchListHandlers(d.Lists)

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", customers.Create)
			r.Get("/search", customers.Search)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", customers.Get)
				r.Put("/", customers.Update)
				r.Delete("/", customers.Delete)
				r.Post("/reindex", customers.Reindex)
			})
		})

		r.Route("/search-lists", func(r chi.Router) {
			r.Get("/", lists.List)
			r.Post("/", lists.Create)
			r.Get("/fields", lists.Fields)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", lists.Get)
				r.Put("/", lists.Update)
				r.Delete("/", lists.Delete)
			})
		})

		if d.Backfill != nil {
			r.Route("/admin/backfill", func(r chi.Router) {
				r.Post("/", d.Backfill.Start)
				r.Get("/", d.Backfill.Status)
			})
		}
	})

	return r
}
