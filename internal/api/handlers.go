package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/metrics"
	"github.com/marketpulse/marketpulse/internal/models"
)

// Store defines the persistence operations the read API depends on
type Store interface {
	GetAnomalies(filter models.AnomalyFilter) ([]*models.Anomaly, error)
	GetAnomalyStats(days int) (*models.AnomalyStats, error)
	GetLatestStockPrice(symbol string) (*models.StockPrice, error)
	GetSymbols() ([]string, error)
	Ping() error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store Store
	cache *StatsCache
}

// NewHandler creates a new Handler. cache may be nil to disable caching.
func NewHandler(store Store, cache *StatsCache) *Handler {
	return &Handler{
		store: store,
		cache: cache,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	if err := h.store.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"api":      "healthy",
		"database": dbStatus,
	})
}

// GetAnomalies handles GET /api/v1/anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	filter := models.AnomalyFilter{
		Symbol:      r.URL.Query().Get("symbol"),
		Method:      r.URL.Query().Get("method"),
		AnomalyType: r.URL.Query().Get("anomaly_type"),
		Days:        queryInt(r, "days", 7, 1, 365),
		Limit:       queryInt(r, "limit", 100, 1, 1000),
	}

	anomalies, err := h.store.GetAnomalies(filter)
	if err != nil {
		metrics.APIRequests.WithLabelValues("anomalies", "error").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if anomalies == nil {
		anomalies = []*models.Anomaly{}
	}

	metrics.APIRequests.WithLabelValues("anomalies", "success").Inc()
	respondJSON(w, http.StatusOK, anomalies)
}

// GetAnomalyStats handles GET /api/v1/anomalies/stats
func (h *Handler) GetAnomalyStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7, 1, 365)

	if h.cache != nil {
		if stats, ok := h.cache.Get(r.Context(), days); ok {
			metrics.APIRequests.WithLabelValues("stats", "success").Inc()
			respondJSON(w, http.StatusOK, stats)
			return
		}
	}

	stats, err := h.store.GetAnomalyStats(days)
	if err != nil {
		metrics.APIRequests.WithLabelValues("stats", "error").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), days, stats)
	}

	metrics.APIRequests.WithLabelValues("stats", "success").Inc()
	respondJSON(w, http.StatusOK, stats)
}

// GetLatestPrice handles GET /api/v1/prices/{symbol}/latest
func (h *Handler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	price, err := h.store.GetLatestStockPrice(symbol)
	if err != nil {
		metrics.APIRequests.WithLabelValues("latest_price", "error").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	metrics.APIRequests.WithLabelValues("latest_price", "success").Inc()
	respondJSON(w, http.StatusOK, price)
}

// GetSymbols handles GET /api/v1/symbols
func (h *Handler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.GetSymbols()
	if err != nil {
		metrics.APIRequests.WithLabelValues("symbols", "error").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	metrics.APIRequests.WithLabelValues("symbols", "success").Inc()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
