package models

import "time"

// Detection method constants
const (
	MethodZScore          = "zscore"
	MethodIQR             = "iqr"
	MethodIsolationForest = "isolation_forest"
	MethodMovingAverage   = "moving_average"
	MethodTechnical       = "technical_indicators"
	MethodVolume          = "volume_anomaly"
)

// Anomaly type constants
const (
	TypePriceMovement        = "price_movement"
	TypeVolumeSpike          = "volume_spike"
	TypeTrendDeviation       = "trend_deviation"
	TypeMultivariate         = "multivariate"
	TypeRSIOverbought        = "rsi_overbought"
	TypeRSIOversold          = "rsi_oversold"
	TypeBollingerBreachUpper = "bollinger_breach_upper"
	TypeBollingerBreachLower = "bollinger_breach_lower"
)

// Direction constants used in anomaly details
const (
	DirectionSpike = "spike"
	DirectionDrop  = "drop"
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Anomaly represents one detected anomaly for a symbol at a point in time.
// Details carries detector-specific diagnostics (raw values, thresholds,
// direction) sufficient to explain the flag without recomputation.
type Anomaly struct {
	ID          int                    `json:"id"`
	Symbol      string                 `json:"symbol"`
	Timestamp   time.Time              `json:"timestamp"`
	AnomalyType string                 `json:"anomaly_type"`
	Method      string                 `json:"method"`
	Score       float64                `json:"score"`
	Details     map[string]interface{} `json:"details"`
	CreatedAt   time.Time              `json:"created_at"`
}

// AnomalyFilter holds query filters for retrieving stored anomalies
type AnomalyFilter struct {
	Symbol      string
	Method      string
	AnomalyType string
	Days        int
	Limit       int
}

// AnomalyStats aggregates stored anomalies for the read API
type AnomalyStats struct {
	TotalAnomalies int            `json:"total_anomalies"`
	ByMethod       map[string]int `json:"by_method"`
	BySymbol       map[string]int `json:"by_symbol"`
	ByType         map[string]int `json:"by_type"`
}

// AnomalyEvent represents a Kafka event published after a detection batch
// is persisted for a symbol
type AnomalyEvent struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Count     int       `json:"count"`
	Anomalies []Anomaly `json:"anomalies"`
	Timestamp time.Time `json:"timestamp"`
}
