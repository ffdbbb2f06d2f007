package detector

import (
	"fmt"

	"github.com/marketpulse/marketpulse/internal/models"
)

// Detector is the common interface implemented by every detection strategy.
// Detect is a pure function of the input series: it returns the anomalies it
// found, an empty result when the series is invalid or too short, and an
// error only for unexpected computation failures.
type Detector interface {
	Name() string
	Detect(series []Candle) ([]models.Anomaly, error)
}

// DetectionError records the failure of a single detector for a single
// symbol. The orchestrator collects these instead of aborting the run.
type DetectionError struct {
	Detector string
	Symbol   string
	Err      error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detector %s failed for %s: %v", e.Detector, e.Symbol, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

func returnDirection(value float64) string {
	if value > 0 {
		return models.DirectionSpike
	}
	return models.DirectionDrop
}
