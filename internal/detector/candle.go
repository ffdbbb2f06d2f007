// Package detector implements the anomaly detection engine: a set of
// independent detection strategies over per-symbol daily OHLCV series and
// an orchestrator that runs them across symbols.
package detector

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Candle is one OHLCV row of a per-symbol time series, ascending by
// timestamp with no duplicate timestamps (enforced by the store).
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// validateSeries checks that a series is non-empty and carries the fields
// every detector requires: symbol, timestamp and a positive close. It never
// returns an error; an invalid series is a no-op for the caller.
func validateSeries(detector string, series []Candle) bool {
	if len(series) == 0 {
		log.Warn().Str("detector", detector).Msg("series is empty")
		return false
	}
	first := series[0]
	if first.Symbol == "" || first.Timestamp.IsZero() || first.Close <= 0 {
		log.Warn().
			Str("detector", detector).
			Str("symbol", first.Symbol).
			Msg("series is missing required fields")
		return false
	}
	return true
}

// dailyReturns computes the percentage change in close price per row.
// The first row has no prior close and is NaN.
func dailyReturns(series []Candle) []float64 {
	out := make([]float64, len(series))
	out[0] = math.NaN()
	for i := 1; i < len(series); i++ {
		out[i] = (series[i].Close/series[i-1].Close - 1) * 100
	}
	return out
}

// volumeChanges computes the percentage change in volume per row.
// The first row is NaN; a zero prior volume yields a non-finite value
// which downstream statistics treat as undefined.
func volumeChanges(series []Candle) []float64 {
	out := make([]float64, len(series))
	out[0] = math.NaN()
	for i := 1; i < len(series); i++ {
		prev := float64(series[i-1].Volume)
		if prev == 0 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = (float64(series[i].Volume)/prev - 1) * 100
	}
	return out
}

// priceRanges computes the intraday range as a percentage of close.
func priceRanges(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = (c.High - c.Low) / c.Close * 100
	}
	return out
}
