package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/anomalies", handler.GetAnomalies).Methods("GET")
	api.HandleFunc("/anomalies/stats", handler.GetAnomalyStats).Methods("GET")
	api.HandleFunc("/prices/{symbol}/latest", handler.GetLatestPrice).Methods("GET")
	api.HandleFunc("/symbols", handler.GetSymbols).Methods("GET")

	return r
}
