package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes attaches all application routes to mux.
// Keeping this separate from handlers.go means the full route surface
// is visible at a glance without scrolling through handler logic.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Search
	mux.HandleFunc("GET /api/search", h.SearchProducts)

	// Admin
	mux.HandleFunc("POST /api/admin/reindex", h.AdminReindex)

	// Observability
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())
}
