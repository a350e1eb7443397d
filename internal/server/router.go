package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comanda/internal/config"
	"comanda/internal/httpx"
)

// Mount attaches one component's routes. public serves gateway traffic,
// internal serves service-to-service calls. Both require X-Tenant-ID.
type Mount func(public, internal chi.Router)

func NewRouter(cfg *config.Config, mounts ...Mount) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	var public, internal chi.Router
	r.Group(func(r chi.Router) {
		r.Use(httpx.APIKey(cfg.Server.APIKey), httpx.Tenant)
		public = r
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.APIKey(cfg.Services.APIKey), httpx.Tenant)
		internal = r
	})

	for _, mount := range mounts {
		mount(public, internal)
	}
	return r
}
