package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/marketpulse/internal/models"
)

func newTestAnomaly(symbol, method, anomalyType string, daysAgo int, score float64) models.Anomaly {
	return models.Anomaly{
		Symbol:      symbol,
		Timestamp:   time.Now().UTC().AddDate(0, 0, -daysAgo),
		AnomalyType: anomalyType,
		Method:      method,
		Score:       score,
		Details: map[string]interface{}{
			"direction":   models.DirectionSpike,
			"close_price": 177.25,
		},
	}
}

func TestAnomalyRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	ctx := context.Background()

	t.Run("SaveAnomalies persists a batch", func(t *testing.T) {
		testDB.TruncateAll(t)

		batch := []models.Anomaly{
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 1, 3.4),
			newTestAnomaly("AAPL", models.MethodVolume, models.TypeVolumeSpike, 1, 4.2),
		}
		saved, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, saved)

		retrieved, err := testDB.GetAnomalies(models.AnomalyFilter{Symbol: "AAPL"})
		require.NoError(t, err)
		require.Len(t, retrieved, 2)
		assert.Equal(t, models.DirectionSpike, retrieved[0].Details["direction"])
		assert.InDelta(t, 177.25, retrieved[0].Details["close_price"], 1e-9)
	})

	t.Run("SaveAnomalies with empty batch is a no-op", func(t *testing.T) {
		testDB.TruncateAll(t)

		saved, err := testDB.SaveAnomalies(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, saved)
	})

	t.Run("GetAnomalies filters by method and type", func(t *testing.T) {
		testDB.TruncateAll(t)

		batch := []models.Anomaly{
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 1, 3.4),
			newTestAnomaly("AAPL", models.MethodIQR, models.TypePriceMovement, 2, 2.1),
			newTestAnomaly("MSFT", models.MethodVolume, models.TypeVolumeSpike, 1, 5.0),
		}
		_, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)

		byMethod, err := testDB.GetAnomalies(models.AnomalyFilter{Method: models.MethodZScore})
		require.NoError(t, err)
		require.Len(t, byMethod, 1)
		assert.Equal(t, "AAPL", byMethod[0].Symbol)

		byType, err := testDB.GetAnomalies(models.AnomalyFilter{AnomalyType: models.TypeVolumeSpike})
		require.NoError(t, err)
		require.Len(t, byType, 1)
		assert.Equal(t, "MSFT", byType[0].Symbol)
	})

	t.Run("GetAnomalies respects the trailing window", func(t *testing.T) {
		testDB.TruncateAll(t)

		batch := []models.Anomaly{
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 1, 3.4),
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 30, 3.9),
		}
		_, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)

		recent, err := testDB.GetAnomalies(models.AnomalyFilter{Days: 7})
		require.NoError(t, err)
		assert.Len(t, recent, 1)

		all, err := testDB.GetAnomalies(models.AnomalyFilter{Days: 60})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("GetAnomalies orders most recent first and applies limit", func(t *testing.T) {
		testDB.TruncateAll(t)

		var batch []models.Anomaly
		for day := 1; day <= 5; day++ {
			batch = append(batch, newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, day, float64(day)))
		}
		_, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)

		retrieved, err := testDB.GetAnomalies(models.AnomalyFilter{Limit: 3})
		require.NoError(t, err)
		require.Len(t, retrieved, 3)
		assert.True(t, retrieved[0].Timestamp.After(retrieved[2].Timestamp))
		assert.InDelta(t, 1.0, retrieved[0].Score, 1e-9)
	})

	t.Run("GetAnomalyStats aggregates by method symbol and type", func(t *testing.T) {
		testDB.TruncateAll(t)

		batch := []models.Anomaly{
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 1, 3.4),
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 2, 2.8),
			newTestAnomaly("AAPL", models.MethodIQR, models.TypePriceMovement, 1, 2.0),
			newTestAnomaly("MSFT", models.MethodVolume, models.TypeVolumeSpike, 1, 5.0),
		}
		_, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)

		stats, err := testDB.GetAnomalyStats(7)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalAnomalies)
		assert.Equal(t, 2, stats.ByMethod[models.MethodZScore])
		assert.Equal(t, 1, stats.ByMethod[models.MethodIQR])
		assert.Equal(t, 3, stats.BySymbol["AAPL"])
		assert.Equal(t, 3, stats.ByType[models.TypePriceMovement])
		assert.Equal(t, 1, stats.ByType[models.TypeVolumeSpike])
	})

	t.Run("DeleteAnomaliesOlderThan removes old records", func(t *testing.T) {
		testDB.TruncateAll(t)

		batch := []models.Anomaly{
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 1, 3.4),
			newTestAnomaly("AAPL", models.MethodZScore, models.TypePriceMovement, 40, 3.9),
		}
		_, err := testDB.SaveAnomalies(ctx, batch)
		require.NoError(t, err)

		deleted, err := testDB.DeleteAnomaliesOlderThan(time.Now().UTC().AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
