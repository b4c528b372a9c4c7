package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/guestcomms/internal/config"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", AccountHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no account required)
	r.Get("/health", h.HealthCheck)

	// Cron entry point
	r.With(requireBearer(cfg.TickToken)).Post("/internal/tick", h.Tick)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAccount)

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", h.ListAutomations)
			r.Post("/", h.CreateAutomation)
			r.Get("/{id}", h.GetAutomation)
			r.Put("/{id}", h.UpdateAutomation)
			r.Delete("/{id}", h.DeleteAutomation)
			r.Post("/{id}/toggle", h.ToggleAutomation)
			r.Post("/{id}/test", h.TestAutomation)
		})

		r.Post("/events", h.HandleEvent)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Get("/{id}", h.GetMessage)
			r.Post("/{id}/cancel", h.CancelMessage)
			r.Post("/{id}/events", h.RecordMessageEvent)
		})
	})

	return r
}
