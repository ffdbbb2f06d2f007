package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marketpulse/marketpulse/internal/detector"
	"github.com/marketpulse/marketpulse/internal/models"
)

// CreateStockPrice inserts a price bar, updating on (symbol, timestamp)
// conflict
func (db *DB) CreateStockPrice(p *models.StockPrice) error {
	query := `
		INSERT INTO stock_prices (symbol, timestamp, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		p.Symbol, p.Timestamp, p.Open, p.High, p.Low, p.Close, p.Volume, time.Now(),
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create stock price: %w", err)
	}
	return nil
}

// CreateStockPriceBatch upserts multiple price bars in one transaction
func (db *DB) CreateStockPriceBatch(prices []*models.StockPrice) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stock_prices (symbol, timestamp, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range prices {
		_, err := stmt.Exec(p.Symbol, p.Timestamp, p.Open, p.High, p.Low, p.Close, p.Volume, now)
		if err != nil {
			return fmt.Errorf("failed to insert stock price for %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStockPrices retrieves the most recent price bars for a symbol,
// ascending by timestamp
func (db *DB) GetStockPrices(symbol string, limit int) ([]*models.StockPrice, error) {
	query := `
		SELECT id, symbol, timestamp, open, high, low, close, volume, created_at
		FROM (
			SELECT id, symbol, timestamp, open, high, low, close, volume, created_at
			FROM stock_prices
			WHERE symbol = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.StockPrice
	for rows.Next() {
		var p models.StockPrice
		err := rows.Scan(
			&p.ID, &p.Symbol, &p.Timestamp, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock price: %w", err)
		}
		prices = append(prices, &p)
	}

	return prices, rows.Err()
}

// GetLatestStockPrice retrieves the most recent price bar for a symbol
func (db *DB) GetLatestStockPrice(symbol string) (*models.StockPrice, error) {
	query := `
		SELECT id, symbol, timestamp, open, high, low, close, volume, created_at
		FROM stock_prices
		WHERE symbol = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var p models.StockPrice
	err := db.conn.QueryRow(query, symbol).Scan(
		&p.ID, &p.Symbol, &p.Timestamp, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no price data found for %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest stock price: %w", err)
	}
	return &p, nil
}

// GetSymbols lists the distinct symbols with stored price data
func (db *DB) GetSymbols() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT symbol FROM stock_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// FetchSeries implements detector.SeriesSource. It returns up to
// lookbackDays of the most recent bars for a symbol, ascending by
// timestamp, as float candles; an empty slice means no data.
func (db *DB) FetchSeries(ctx context.Context, symbol string, lookbackDays int) ([]detector.Candle, error) {
	query := `
		SELECT symbol, timestamp,
		       CAST(open AS DOUBLE PRECISION),
		       CAST(high AS DOUBLE PRECISION),
		       CAST(low AS DOUBLE PRECISION),
		       CAST(close AS DOUBLE PRECISION),
		       volume
		FROM (
			SELECT symbol, timestamp, open, high, low, close, volume
			FROM stock_prices
			WHERE symbol = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series for %s: %w", symbol, err)
	}
	defer rows.Close()

	var series []detector.Candle
	for rows.Next() {
		var c detector.Candle
		err := rows.Scan(&c.Symbol, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		series = append(series, c)
	}

	return series, rows.Err()
}

// DeleteStockPricesOlderThan removes price bars older than a cutoff
func (db *DB) DeleteStockPricesOlderThan(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM stock_prices WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old stock prices: %w", err)
	}
	return result.RowsAffected()
}
