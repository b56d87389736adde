// Package api exposes the campaign management HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/campaign-autopilot/internal/pkg/httputil"
)

// StatsProvider reports dispatch counters for the health payload. The server
// binary runs without a dispatcher, so it may be nil.
type StatsProvider interface {
	Stats() map[string]int64
}

// SetupRoutes builds the router: global middleware plus the campaign API
// mounted under /api.
func SetupRoutes(h *CampaignHandlers, stats StatsProvider) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{"status": "ok"}
		if stats != nil {
			payload["dispatch"] = stats.Stats()
		}
		httputil.OK(w, payload)
	})

	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})

	return r
}
