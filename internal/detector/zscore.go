package detector

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// ZScoreDetector flags daily returns whose z-score within a trailing rolling
// window exceeds a threshold.
type ZScoreDetector struct {
	threshold float64
	window    int
}

// NewZScoreDetector creates a z-score detector. threshold is in standard
// deviations, window in trading days.
func NewZScoreDetector(threshold float64, window int) *ZScoreDetector {
	return &ZScoreDetector{threshold: threshold, window: window}
}

func (d *ZScoreDetector) Name() string { return models.MethodZScore }

func (d *ZScoreDetector) Detect(series []Candle) ([]models.Anomaly, error) {
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

	// The first return is undefined; statistics run over the valid tail.
	returns := dailyReturns(series)[1:]
	rows := series[1:]

	means, stds := rollingMeanStd(returns, d.window)

	var anomalies []models.Anomaly
	for i := range returns {
		if math.IsNaN(means[i]) || math.IsNaN(stds[i]) || stds[i] == 0 {
			continue
		}
		z := (returns[i] - means[i]) / stds[i]
		if math.Abs(z) <= d.threshold {
			continue
		}
		anomalies = append(anomalies, models.Anomaly{
			Symbol:      symbol,
			Timestamp:   rows[i].Timestamp,
			AnomalyType: models.TypePriceMovement,
			Method:      d.Name(),
			Score:       math.Abs(z),
			Details: map[string]interface{}{
				"daily_return": returns[i],
				"zscore":       z,
				"rolling_mean": means[i],
				"rolling_std":  stds[i],
				"threshold":    d.threshold,
				"close_price":  rows[i].Close,
				"direction":    returnDirection(returns[i]),
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
