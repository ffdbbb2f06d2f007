package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/models"
)

// StatsCache caches anomaly stat aggregates in Redis with a short TTL.
// Cache failures are advisory: a miss or error always falls through to the
// database.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a stats cache backed by the given Redis client
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns the cached stats for the given window if present
func (c *StatsCache) Get(ctx context.Context, days int) (*models.AnomalyStats, bool) {
	data, err := c.client.Get(ctx, statsKey(days)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("stats cache read failed")
		return nil, false
	}

	var stats models.AnomalyStats
	if err := json.Unmarshal(data, &stats); err != nil {
		log.Warn().Err(err).Msg("stats cache entry corrupted")
		return nil, false
	}
	return &stats, true
}

// Set stores stats for the given window
func (c *StatsCache) Set(ctx context.Context, days int, stats *models.AnomalyStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal stats for cache")
		return
	}
	if err := c.client.Set(ctx, statsKey(days), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("stats cache write failed")
	}
}

func statsKey(days int) string {
	return fmt.Sprintf("marketpulse:anomaly_stats:%d", days)
}
