package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice represents one daily OHLCV bar for a stock
type StockPrice struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}
