package detector

import (
	"time"
)

// seriesFromCloses builds a daily series with the given closes, a fixed
// volume, and a small intraday range around each close.
func seriesFromCloses(symbol string, closes []float64) []Candle {
	series := make([]Candle, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		series[i] = Candle{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    1_000_000,
		}
	}
	return series
}

// alternatingCloses builds n closes starting at base with returns
// alternating +stepPct / -stepPct.
func alternatingCloses(base float64, n int, stepPct float64) []float64 {
	closes := make([]float64, n)
	closes[0] = base
	for i := 1; i < n; i++ {
		pct := stepPct
		if i%2 == 0 {
			pct = -stepPct
		}
		closes[i] = closes[i-1] * (1 + pct/100)
	}
	return closes
}

func constantCloses(value float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return closes
}

func withVolumes(series []Candle, volumes []int64) []Candle {
	for i := range series {
		series[i].Volume = volumes[i]
	}
	return series
}

// alternatingVolumes builds n volumes around base with a small alternating
// wiggle so rolling statistics have non-zero spread.
func alternatingVolumes(base int64, n int) []int64 {
	volumes := make([]int64, n)
	for i := range volumes {
		wiggle := int64(float64(base) * 0.01)
		if i%2 == 0 {
			wiggle = -wiggle
		}
		volumes[i] = base + wiggle
	}
	return volumes
}

func detailFloat(details map[string]interface{}, key string) float64 {
	v, ok := details[key].(float64)
	if !ok {
		return 0
	}
	return v
}
