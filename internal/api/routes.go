package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, registry *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	// Ledger routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/events", handler.PostEvent).Methods("POST")
	api.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/trades/recent", handler.GetRecentTrades).Methods("GET")
	api.HandleFunc("/accounts/{id}/performance", handler.GetPerformance).Methods("GET")

	return r
}
