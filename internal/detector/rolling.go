package detector

import (
	"math"
	"sort"
)

// rollingMeanStd computes trailing mean and sample standard deviation over a
// fixed window, aligned to values. Positions with fewer than window points,
// or whose window contains a non-finite value, are NaN. Variance uses
// Welford's recurrence per window rather than a sum-of-squares shortcut.
func rollingMeanStd(values []float64, window int) (means, stds []float64) {
	n := len(values)
	means = make([]float64, n)
	stds = make([]float64, n)
	for i := range means {
		means[i] = math.NaN()
		stds[i] = math.NaN()
	}
	if window < 2 || n < window {
		return means, stds
	}

	for i := window - 1; i < n; i++ {
		var mean, m2 float64
		count := 0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			v := values[j]
			if !isFinite(v) {
				ok = false
				break
			}
			count++
			delta := v - mean
			mean += delta / float64(count)
			m2 += delta * (v - mean)
		}
		if !ok {
			continue
		}
		means[i] = mean
		stds[i] = math.Sqrt(m2 / float64(window-1))
	}
	return means, stds
}

// rollingQuantile computes a trailing windowed quantile using linear
// interpolation between order statistics. Same NaN alignment rules as
// rollingMeanStd.
func rollingQuantile(values []float64, window int, q float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || n < window {
		return out
	}

	buf := make([]float64, window)
	for i := window - 1; i < n; i++ {
		ok := true
		for j := 0; j < window; j++ {
			v := values[i-window+1+j]
			if !isFinite(v) {
				ok = false
				break
			}
			buf[j] = v
		}
		if !ok {
			continue
		}
		out[i] = quantile(buf, q)
	}
	return out
}

// quantile computes the q-th quantile of values with linear interpolation.
// values is scratch space and gets reordered.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}
	pos := q * float64(len(values)-1)
	lo := int(math.Floor(pos))
	if lo >= len(values)-1 {
		return values[len(values)-1]
	}
	frac := pos - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
