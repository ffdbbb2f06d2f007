package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/marketpulse/internal/models"
)

type fakeStore struct {
	anomalies  []*models.Anomaly
	stats      *models.AnomalyStats
	statsCalls int
	price      *models.StockPrice
	symbols    []string
	filter     models.AnomalyFilter
	err        error
	pingErr    error
}

func (s *fakeStore) GetAnomalies(filter models.AnomalyFilter) ([]*models.Anomaly, error) {
	s.filter = filter
	return s.anomalies, s.err
}

func (s *fakeStore) GetAnomalyStats(days int) (*models.AnomalyStats, error) {
	s.statsCalls++
	return s.stats, s.err
}

func (s *fakeStore) GetLatestStockPrice(symbol string) (*models.StockPrice, error) {
	if s.price == nil {
		return nil, errors.New("no price data for symbol")
	}
	return s.price, s.err
}

func (s *fakeStore) GetSymbols() ([]string, error) { return s.symbols, s.err }

func (s *fakeStore) Ping() error { return s.pingErr }

func serve(t *testing.T, store Store, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := SetupRoutes(NewHandler(store, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rec := serve(t, &fakeStore{}, http.MethodGet, "/health")

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["api"])
		assert.Equal(t, "healthy", body["database"])
	})

	t.Run("database down", func(t *testing.T) {
		rec := serve(t, &fakeStore{pingErr: errors.New("dial tcp: refused")}, http.MethodGet, "/health")

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["database"], "unhealthy")
	})
}

func TestGetAnomalies(t *testing.T) {
	t.Run("applies query filters with clamped defaults", func(t *testing.T) {
		store := &fakeStore{anomalies: []*models.Anomaly{{
			Symbol:      "AAPL",
			Timestamp:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			AnomalyType: models.TypePriceMovement,
			Method:      models.MethodZScore,
			Score:       4.1,
		}}}

		rec := serve(t, store, http.MethodGet,
			"/api/v1/anomalies?symbol=AAPL&method=zscore&days=30&limit=5000")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "AAPL", store.filter.Symbol)
		assert.Equal(t, models.MethodZScore, store.filter.Method)
		assert.Equal(t, 30, store.filter.Days)
		// limit above the cap falls back to the default
		assert.Equal(t, 100, store.filter.Limit)

		var body []models.Anomaly
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "AAPL", body[0].Symbol)
	})

	t.Run("returns an empty array instead of null", func(t *testing.T) {
		rec := serve(t, &fakeStore{}, http.MethodGet, "/api/v1/anomalies")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		rec := serve(t, &fakeStore{err: errors.New("query failed")}, http.MethodGet, "/api/v1/anomalies")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetAnomalyStats(t *testing.T) {
	store := &fakeStore{stats: &models.AnomalyStats{
		TotalAnomalies: 12,
		ByMethod:       map[string]int{models.MethodZScore: 7, models.MethodIQR: 5},
		BySymbol:       map[string]int{"AAPL": 12},
		ByType:         map[string]int{models.TypePriceMovement: 12},
	}}

	rec := serve(t, store, http.MethodGet, "/api/v1/anomalies/stats?days=14")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.statsCalls)

	var body models.AnomalyStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.TotalAnomalies)
	assert.Equal(t, 7, body.ByMethod[models.MethodZScore])
}

func TestGetLatestPrice(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store := &fakeStore{price: &models.StockPrice{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Close:     decimal.NewFromFloat(415.50),
			Volume:    22000000,
		}}

		rec := serve(t, store, http.MethodGet, "/api/v1/prices/MSFT/latest")

		assert.Equal(t, http.StatusOK, rec.Code)
		var body models.StockPrice
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "MSFT", body.Symbol)
	})

	t.Run("unknown symbol returns 404", func(t *testing.T) {
		rec := serve(t, &fakeStore{}, http.MethodGet, "/api/v1/prices/NOPE/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetSymbols(t *testing.T) {
	rec := serve(t, &fakeStore{symbols: []string{"AAPL", "MSFT"}}, http.MethodGet, "/api/v1/symbols")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Symbols []string `json:"symbols"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"AAPL", "MSFT"}, body.Symbols)
	assert.Equal(t, 2, body.Count)
}
