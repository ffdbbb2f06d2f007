package detector

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// IQRDetector flags daily returns outside quantile-based bounds within a
// trailing rolling window. More robust to extreme values than the z-score.
type IQRDetector struct {
	multiplier float64
	window     int
}

// NewIQRDetector creates an IQR detector with the given bound multiplier
// and rolling window.
func NewIQRDetector(multiplier float64, window int) *IQRDetector {
	return &IQRDetector{multiplier: multiplier, window: window}
}

func (d *IQRDetector) Name() string { return models.MethodIQR }

func (d *IQRDetector) Detect(series []Candle) ([]models.Anomaly, error) {
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
	returns := dailyReturns(series)[1:]
	rows := series[1:]

	q1s := rollingQuantile(returns, d.window, 0.25)
	q3s := rollingQuantile(returns, d.window, 0.75)

	var anomalies []models.Anomaly
	for i := range returns {
		if math.IsNaN(q1s[i]) || math.IsNaN(q3s[i]) {
			continue
		}
		iqr := q3s[i] - q1s[i]
		// A degenerate window has no spread to score against.
		if iqr == 0 {
			continue
		}
		lower := q1s[i] - d.multiplier*iqr
		upper := q3s[i] + d.multiplier*iqr

		var score float64
		switch {
		case returns[i] < lower:
			score = math.Abs(returns[i]-lower) / iqr
		case returns[i] > upper:
			score = math.Abs(returns[i]-upper) / iqr
		default:
			continue
		}

		anomalies = append(anomalies, models.Anomaly{
			Symbol:      symbol,
			Timestamp:   rows[i].Timestamp,
			AnomalyType: models.TypePriceMovement,
			Method:      d.Name(),
			Score:       score,
			Details: map[string]interface{}{
				"daily_return": returns[i],
				"iqr":          iqr,
				"lower_bound":  lower,
				"upper_bound":  upper,
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
