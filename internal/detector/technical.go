package detector

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// TechnicalDetector flags RSI overbought/oversold conditions and Bollinger
// Band breaches. The two checks run independently and may both fire for the
// same row, producing two records with distinct anomaly types.
type TechnicalDetector struct {
	rsiPeriod int
	bbPeriod  int
	bbStd     float64
}

// NewTechnicalDetector creates a technical-indicators detector.
func NewTechnicalDetector(rsiPeriod, bbPeriod int, bbStd float64) *TechnicalDetector {
	return &TechnicalDetector{rsiPeriod: rsiPeriod, bbPeriod: bbPeriod, bbStd: bbStd}
}

func (d *TechnicalDetector) Name() string { return models.MethodTechnical }

func (d *TechnicalDetector) Detect(series []Candle) ([]models.Anomaly, error) {
	if !validateSeries(d.Name(), series) {
		return nil, nil
	}
	required := d.rsiPeriod
	if d.bbPeriod > required {
		required = d.bbPeriod
	}
	required += 5
	if len(series) < required {
		log.Warn().
			Str("detector", d.Name()).
			Int("data_points", len(series)).
			Int("required", required).
			Msg("insufficient data points")
		return nil, nil
	}

	symbol := series[0].Symbol
	closes := make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
	}

	rsis := d.calculateRSI(closes)
	bbMiddles, bbStds := rollingMeanStd(closes, d.bbPeriod)

	var anomalies []models.Anomaly
	for i := range series {
		// Rows where either indicator is still undefined are excluded.
		if math.IsNaN(rsis[i]) || math.IsNaN(bbMiddles[i]) || math.IsNaN(bbStds[i]) {
			continue
		}

		if rsis[i] > 70 || rsis[i] < 30 {
			condition := "overbought"
			anomalyType := models.TypeRSIOverbought
			if rsis[i] < 30 {
				condition = "oversold"
				anomalyType = models.TypeRSIOversold
			}
			anomalies = append(anomalies, models.Anomaly{
				Symbol:      symbol,
				Timestamp:   series[i].Timestamp,
				AnomalyType: anomalyType,
				Method:      d.Name(),
				Score:       math.Abs(rsis[i]-50) / 20,
				Details: map[string]interface{}{
					"rsi":         rsis[i],
					"condition":   condition,
					"close_price": series[i].Close,
					"indicator":   "RSI",
				},
			})
		}

		upper := bbMiddles[i] + d.bbStd*bbStds[i]
		lower := bbMiddles[i] - d.bbStd*bbStds[i]
		if series[i].Close > upper || series[i].Close < lower {
			breachType := "upper"
			distance := (series[i].Close - upper) / bbStds[i]
			if series[i].Close < lower {
				breachType = "lower"
				distance = (lower - series[i].Close) / bbStds[i]
			}
			anomalyType := models.TypeBollingerBreachUpper
			if breachType == "lower" {
				anomalyType = models.TypeBollingerBreachLower
			}
			anomalies = append(anomalies, models.Anomaly{
				Symbol:      symbol,
				Timestamp:   series[i].Timestamp,
				AnomalyType: anomalyType,
				Method:      d.Name(),
				Score:       distance,
				Details: map[string]interface{}{
					"close_price":  series[i].Close,
					"bb_upper":     upper,
					"bb_lower":     lower,
					"bb_middle":    bbMiddles[i],
					"breach_type":  breachType,
					"distance_std": distance,
					"indicator":    "Bollinger Bands",
				},
			})
		}
	}

	if len(anomalies) > 0 {
		log.Info().
			Str("symbol", symbol).
			Str("method", d.Name()).
			Int("count", len(anomalies)).
			Msg("detected technical indicator anomalies")
	}
	return anomalies, nil
}

// calculateRSI computes the RSI over trailing simple averages of gains and
// losses. RSI is undefined (NaN) until rsiPeriod deltas are available; a
// window with no losses converges to 100.
func (d *TechnicalDetector) calculateRSI(closes []float64) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	gains[0] = math.NaN()
	losses[0] = math.NaN()
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGains, _ := rollingMeanStd(gains, d.rsiPeriod)
	avgLosses, _ := rollingMeanStd(losses, d.rsiPeriod)

	rsis := make([]float64, n)
	for i := range rsis {
		switch {
		case math.IsNaN(avgGains[i]) || math.IsNaN(avgLosses[i]):
			rsis[i] = math.NaN()
		case avgLosses[i] == 0 && avgGains[i] == 0:
			rsis[i] = math.NaN()
		case avgLosses[i] == 0:
			rsis[i] = 100
		default:
			rs := avgGains[i] / avgLosses[i]
			rsis[i] = 100 - 100/(1+rs)
		}
	}
	return rsis
}
