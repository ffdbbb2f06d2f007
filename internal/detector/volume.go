package detector

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// VolumeDetector flags unusual volume via a z-score on day-over-day volume
// changes. Unusual volume often precedes or accompanies price movements.
type VolumeDetector struct {
	threshold float64
	window    int
}

// NewVolumeDetector creates a volume anomaly detector.
func NewVolumeDetector(threshold float64, window int) *VolumeDetector {
	return &VolumeDetector{threshold: threshold, window: window}
}

func (d *VolumeDetector) Name() string { return models.MethodVolume }

func (d *VolumeDetector) Detect(series []Candle) ([]models.Anomaly, error) {
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
	changes := volumeChanges(series)
	means, stds := rollingMeanStd(changes, d.window)

	var anomalies []models.Anomaly
	for i := range series {
		if math.IsNaN(means[i]) || math.IsNaN(stds[i]) || stds[i] == 0 || !isFinite(changes[i]) {
			continue
		}
		z := (changes[i] - means[i]) / stds[i]
		if math.Abs(z) <= d.threshold {
			continue
		}

		// Price change against the most recent earlier row for context;
		// rows are index-adjacent so this is a direct lookup.
		priceChangePct := 0.0
		if i > 0 && series[i-1].Close != 0 {
			priceChangePct = (series[i].Close - series[i-1].Close) / series[i-1].Close * 100
		}

		anomalies = append(anomalies, models.Anomaly{
			Symbol:      symbol,
			Timestamp:   series[i].Timestamp,
			AnomalyType: models.TypeVolumeSpike,
			Method:      d.Name(),
			Score:       math.Abs(z),
			Details: map[string]interface{}{
				"volume":            series[i].Volume,
				"volume_change_pct": changes[i],
				"volume_zscore":     z,
				"price_change_pct":  priceChangePct,
				"direction":         returnDirection(changes[i]),
				"close_price":       series[i].Close,
			},
		})
	}

	if len(anomalies) > 0 {
		log.Info().
			Str("symbol", symbol).
			Str("method", d.Name()).
			Int("count", len(anomalies)).
			Msg("detected volume anomalies")
	}
	return anomalies, nil
}
