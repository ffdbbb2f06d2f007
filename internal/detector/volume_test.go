package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/marketpulse/internal/models"
)

func TestVolumeDetector(t *testing.T) {
	d := NewVolumeDetector(3.0, 20)

	t.Run("returns empty for short series", func(t *testing.T) {
		series := seriesFromCloses("INTC", constantCloses(100, 10))

		anomalies, err := d.Detect(series)
		require.NoError(t, err)
		assert.Empty(t, anomalies)
	})

	t.Run("constant volume never flags", func(t *testing.T) {
		series := seriesFromCloses("INTC", alternatingCloses(100, 40, 0.5))

		anomalies, err := d.Detect(series)
		require.NoError(t, err)
		assert.Empty(t, anomalies)
	})

	t.Run("flags a volume spike", func(t *testing.T) {
		n := 40
		spikeIdx := 30
		volumes := alternatingVolumes(1_000_000, n)
		volumes[spikeIdx] = 8_000_000
		series := withVolumes(seriesFromCloses("INTC", alternatingCloses(100, n, 0.5)), volumes)

		anomalies, err := d.Detect(series)
		require.NoError(t, err)
		require.Len(t, anomalies, 1)

		a := anomalies[0]
		assert.Equal(t, models.MethodVolume, a.Method)
		assert.Equal(t, models.TypeVolumeSpike, a.AnomalyType)
		assert.Equal(t, models.DirectionSpike, a.Details["direction"])
		assert.True(t, a.Timestamp.Equal(series[spikeIdx].Timestamp))
		assert.Greater(t, a.Score, 3.0)
		assert.EqualValues(t, 8_000_000, a.Details["volume"])
		assert.Greater(t, detailFloat(a.Details, "volume_change_pct"), 600.0)
	})

	t.Run("flags a volume collapse as drop", func(t *testing.T) {
		n := 40
		dropIdx := 30
		volumes := alternatingVolumes(1_000_000, n)
		// Persistent collapse so only the drop day stands out, not a rebound.
		for i := dropIdx; i < n; i++ {
			volumes[i] = 100_000
		}
		series := withVolumes(seriesFromCloses("INTC", alternatingCloses(100, n, 0.5)), volumes)

		anomalies, err := d.Detect(series)
		require.NoError(t, err)
		require.Len(t, anomalies, 1)

		a := anomalies[0]
		assert.Equal(t, models.DirectionDrop, a.Details["direction"])
		assert.Less(t, detailFloat(a.Details, "volume_zscore"), -3.0)
	})
}
