package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketpulse/marketpulse/internal/models"
)

// SaveAnomalies implements detector.AnomalySink. The batch is written in a
// single transaction; it either lands fully or not at all.
func (db *DB) SaveAnomalies(ctx context.Context, anomalies []models.Anomaly) (int, error) {
	if len(anomalies) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO anomalies (symbol, timestamp, anomaly_type, method, score, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range anomalies {
		details, err := json.Marshal(a.Details)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal details for %s: %w", a.Symbol, err)
		}
		_, err = stmt.ExecContext(ctx, a.Symbol, a.Timestamp, a.AnomalyType, a.Method, a.Score, details, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert anomaly for %s: %w", a.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(anomalies), nil
}

// GetAnomalies retrieves stored anomalies matching the filter, most recent
// first
func (db *DB) GetAnomalies(filter models.AnomalyFilter) ([]*models.Anomaly, error) {
	days := filter.Days
	if days <= 0 {
		days = 7
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, symbol, timestamp, anomaly_type, method,
		       CAST(score AS DOUBLE PRECISION), details, created_at
		FROM anomalies
		WHERE timestamp >= $1
	`
	args := []interface{}{time.Now().AddDate(0, 0, -days)}

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		query += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		query += fmt.Sprintf(" AND method = $%d", len(args))
	}
	if filter.AnomalyType != "" {
		args = append(args, filter.AnomalyType)
		query += fmt.Sprintf(" AND anomaly_type = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []*models.Anomaly
	for rows.Next() {
		var a models.Anomaly
		var details []byte
		err := rows.Scan(
			&a.ID, &a.Symbol, &a.Timestamp, &a.AnomalyType, &a.Method, &a.Score, &details, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		anomalies = append(anomalies, &a)
	}

	return anomalies, rows.Err()
}

// GetAnomalyStats aggregates stored anomalies over the trailing window
func (db *DB) GetAnomalyStats(days int) (*models.AnomalyStats, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	stats := &models.AnomalyStats{
		ByMethod: map[string]int{},
		BySymbol: map[string]int{},
		ByType:   map[string]int{},
	}

	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM anomalies WHERE timestamp >= $1`, cutoff,
	).Scan(&stats.TotalAnomalies)
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}

	for column, dest := range map[string]map[string]int{
		"method":       stats.ByMethod,
		"symbol":       stats.BySymbol,
		"anomaly_type": stats.ByType,
	} {
		query := fmt.Sprintf(
			`SELECT %s, COUNT(*) FROM anomalies WHERE timestamp >= $1 GROUP BY %s`,
			column, column,
		)
		rows, err := db.conn.Query(query, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate anomalies by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s aggregate: %w", column, err)
			}
			dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

// DeleteAnomaliesOlderThan removes anomalies older than a cutoff
func (db *DB) DeleteAnomaliesOlderThan(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM anomalies WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old anomalies: %w", err)
	}
	return result.RowsAffected()
}
