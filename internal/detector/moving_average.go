package detector

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// MovingAverageDetector flags closes that deviate from their trailing simple
// moving average by more than a percentage threshold.
type MovingAverageDetector struct {
	window       int
	thresholdPct float64
}

// NewMovingAverageDetector creates a moving-average deviation detector.
func NewMovingAverageDetector(window int, thresholdPct float64) *MovingAverageDetector {
	return &MovingAverageDetector{window: window, thresholdPct: thresholdPct}
}

func (d *MovingAverageDetector) Name() string { return models.MethodMovingAverage }

func (d *MovingAverageDetector) Detect(series []Candle) ([]models.Anomaly, error) {
	if !validateSeries(d.Name(), series) {
		return nil, nil
	}
	if len(series) < d.window {
		log.Warn().
			Str("detector", d.Name()).
			Int("data_points", len(series)).
			Int("required", d.window).
			Msg("insufficient data points")
		return nil, nil
	}

	symbol := series[0].Symbol
	closes := make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
	}

	mas, _ := rollingMeanStd(closes, d.window)

	var anomalies []models.Anomaly
	for i := range series {
		if math.IsNaN(mas[i]) || mas[i] == 0 {
			continue
		}
		deviationPct := (series[i].Close - mas[i]) / mas[i] * 100
		if math.Abs(deviationPct) <= d.thresholdPct {
			continue
		}
		dir := models.DirectionAbove
		if deviationPct < 0 {
			dir = models.DirectionBelow
		}
		anomalies = append(anomalies, models.Anomaly{
			Symbol:      symbol,
			Timestamp:   series[i].Timestamp,
			AnomalyType: models.TypeTrendDeviation,
			Method:      d.Name(),
			Score:       math.Abs(deviationPct) / d.thresholdPct,
			Details: map[string]interface{}{
				"close_price":    series[i].Close,
				"moving_average": mas[i],
				"deviation_pct":  deviationPct,
				"threshold_pct":  d.thresholdPct,
				"direction":      dir,
			},
		})
	}

	if len(anomalies) > 0 {
		log.Info().
			Str("symbol", symbol).
			Str("method", d.Name()).
			Int("count", len(anomalies)).
			Msg("detected anomalies")
	}
	return anomalies, nil
}
