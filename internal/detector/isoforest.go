package detector

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

const (
	isoMinSamples    = 30
	isoSubsampleSize = 256
	isoRandomSeed    = 42
)

// IsolationForestDetector scores rows by how easily a random-partitioning
// ensemble isolates them in a 3-dimensional feature space: daily return,
// volume change percent and intraday price range percent. The rows with the
// shortest average isolation paths, up to the configured contamination
// fraction, are flagged.
type IsolationForestDetector struct {
	contamination float64
	nEstimators   int
}

// NewIsolationForestDetector creates an isolation forest detector.
// contamination is the expected anomaly fraction, nEstimators the number of
// trees. The ensemble is rebuilt per Detect call with a fixed seed so runs
// are reproducible.
func NewIsolationForestDetector(contamination float64, nEstimators int) *IsolationForestDetector {
	return &IsolationForestDetector{contamination: contamination, nEstimators: nEstimators}
}

func (d *IsolationForestDetector) Name() string { return models.MethodIsolationForest }

func (d *IsolationForestDetector) Detect(series []Candle) ([]models.Anomaly, error) {
	if !validateSeries(d.Name(), series) {
		return nil, nil
	}
	if len(series) < isoMinSamples {
		log.Warn().
			Str("detector", d.Name()).
			Int("data_points", len(series)).
			Int("required", isoMinSamples).
			Msg("insufficient data points")
		return nil, nil
	}

	symbol := series[0].Symbol
	returns := dailyReturns(series)
	volChanges := volumeChanges(series)
	ranges := priceRanges(series)

	// Rows with any undefined feature are dropped before fitting.
	var rows []Candle
	var features [][]float64
	for i := range series {
		if !isFinite(returns[i]) || !isFinite(volChanges[i]) || !isFinite(ranges[i]) {
			continue
		}
		rows = append(rows, series[i])
		features = append(features, []float64{returns[i], volChanges[i], ranges[i]})
	}
	if len(features) < isoMinSamples {
		return nil, nil
	}

	forest := newIsolationForest(d.nEstimators, isoSubsampleSize, isoRandomSeed)
	forest.fit(features)

	// Raw score per row: higher = more isolated = more anomalous.
	scores := make([]float64, len(features))
	for i, f := range features {
		scores[i] = forest.score(f)
	}

	// The contamination fraction with the highest scores is flagged.
	flagged := flagTopFraction(scores, d.contamination)

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}

	var anomalies []models.Anomaly
	for i := range features {
		if !flagged[i] {
			continue
		}
		normalized := 0.0
		if maxScore > minScore {
			normalized = (scores[i] - minScore) / (maxScore - minScore) * 10
		}
		anomalies = append(anomalies, models.Anomaly{
			Symbol:      symbol,
			Timestamp:   rows[i].Timestamp,
			AnomalyType: models.TypeMultivariate,
			Method:      d.Name(),
			Score:       normalized,
			Details: map[string]interface{}{
				"daily_return":  features[i][0],
				"volume_change": features[i][1],
				"price_range":   features[i][2],
				"raw_score":     scores[i],
				"close_price":   rows[i].Close,
				"direction":     returnDirection(features[i][0]),
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

// flagTopFraction marks the round(fraction*n) highest scores.
func flagTopFraction(scores []float64, fraction float64) []bool {
	n := len(scores)
	flagged := make([]bool, n)
	k := int(math.Round(fraction * float64(n)))
	if k <= 0 {
		return flagged
	}
	if k > n {
		k = n
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	for _, i := range idx[:k] {
		flagged[i] = true
	}
	return flagged
}

type isoForest struct {
	trees      []*isoNode
	sampleSize int
	rng        *rand.Rand
	nTrees     int
}

type isoNode struct {
	left, right *isoNode
	feature     int
	split       float64
	size        int
}

func newIsolationForest(nTrees, sampleSize int, seed int64) *isoForest {
	return &isoForest{
		nTrees:     nTrees,
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (f *isoForest) fit(data [][]float64) {
	psi := f.sampleSize
	if psi > len(data) {
		psi = len(data)
	}
	f.sampleSize = psi
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))

	f.trees = make([]*isoNode, f.nTrees)
	sample := make([][]float64, psi)
	for t := 0; t < f.nTrees; t++ {
		perm := f.rng.Perm(len(data))
		for i := 0; i < psi; i++ {
			sample[i] = data[perm[i]]
		}
		f.trees[t] = f.buildTree(sample, 0, heightLimit)
	}
}

func (f *isoForest) buildTree(sample [][]float64, depth, heightLimit int) *isoNode {
	if depth >= heightLimit || len(sample) <= 1 {
		return &isoNode{size: len(sample)}
	}

	nFeatures := len(sample[0])
	feature := f.rng.Intn(nFeatures)

	minV, maxV := sample[0][feature], sample[0][feature]
	for _, row := range sample {
		minV = math.Min(minV, row[feature])
		maxV = math.Max(maxV, row[feature])
	}
	if minV == maxV {
		return &isoNode{size: len(sample)}
	}

	split := minV + f.rng.Float64()*(maxV-minV)
	var left, right [][]float64
	for _, row := range sample {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    f.buildTree(left, depth+1, heightLimit),
		right:   f.buildTree(right, depth+1, heightLimit),
		size:    len(sample),
	}
}

// score returns the anomaly score s(x) = 2^(-E[h(x)]/c(psi)), in (0, 1],
// where shorter average path lengths yield larger scores.
func (f *isoForest) score(point []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, point, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/averagePathLength(f.sampleSize))
}

func pathLength(node *isoNode, point []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + averagePathLength(node.size)
	}
	if point[node.feature] < node.split {
		return pathLength(node.left, point, depth+1)
	}
	return pathLength(node.right, point, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// binary search tree lookup, used to normalize isolation depths.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}
