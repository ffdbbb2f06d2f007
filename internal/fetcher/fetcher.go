// Package fetcher retrieves daily OHLCV history from the market data
// provider and maps it onto the price model.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/models"
)

// Client is the market data API client
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxRetries   int
	requestDelay time.Duration
	logger       zerolog.Logger
}

// NewClient creates a market data client from configuration
func NewClient(cfg config.FetcherConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		maxRetries:   cfg.MaxRetries,
		requestDelay: cfg.RequestDelay,
		logger:       log.With().Str("component", "fetcher").Logger(),
	}
}

type seriesResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Values  []seriesValue `json:"values"`
}

type seriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// FetchDailySeries fetches up to days of daily bars for a symbol, ascending
// by timestamp. Transient failures are retried with exponential backoff.
func (c *Client) FetchDailySeries(ctx context.Context, symbol string, days int) ([]*models.StockPrice, error) {
	endpoint := fmt.Sprintf(
		"%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		c.baseURL, url.QueryEscape(symbol), days, c.apiKey,
	)

	var resp seriesResponse
	operation := func() error {
		return c.getJSON(ctx, endpoint, &resp)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	if resp.Status == "error" {
		return nil, fmt.Errorf("fetch %s: provider error: %s", symbol, resp.Message)
	}

	prices := make([]*models.StockPrice, 0, len(resp.Values))
	for _, v := range resp.Values {
		p, err := v.toStockPrice(symbol)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Str("datetime", v.Datetime).Msg("skipping malformed bar")
			continue
		}
		prices = append(prices, p)
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	c.logger.Info().
		Str("symbol", symbol).
		Int("records", len(prices)).
		Msg("fetched daily series")
	return prices, nil
}

// FetchAll fetches every symbol sequentially with a polite delay between
// requests. Failed symbols are logged and skipped.
func (c *Client) FetchAll(ctx context.Context, symbols []string, days int) map[string][]*models.StockPrice {
	results := make(map[string][]*models.StockPrice, len(symbols))

	for i, symbol := range symbols {
		prices, err := c.FetchDailySeries(ctx, symbol, days)
		if err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to fetch symbol")
			continue
		}
		if len(prices) > 0 {
			results[symbol] = prices
		}

		if i < len(symbols)-1 && c.requestDelay > 0 {
			select {
			case <-time.After(c.requestDelay):
			case <-ctx.Done():
				return results
			}
		}
	}

	c.logger.Info().
		Int("fetched", len(results)).
		Int("requested", len(symbols)).
		Msg("fetch complete")
	return results
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (v seriesValue) toStockPrice(symbol string) (*models.StockPrice, error) {
	ts, err := time.Parse("2006-01-02", v.Datetime)
	if err != nil {
		return nil, fmt.Errorf("parsing datetime: %w", err)
	}

	open, err := decimal.NewFromString(v.Open)
	if err != nil {
		return nil, fmt.Errorf("parsing open: %w", err)
	}
	high, err := decimal.NewFromString(v.High)
	if err != nil {
		return nil, fmt.Errorf("parsing high: %w", err)
	}
	low, err := decimal.NewFromString(v.Low)
	if err != nil {
		return nil, fmt.Errorf("parsing low: %w", err)
	}
	closePrice, err := decimal.NewFromString(v.Close)
	if err != nil {
		return nil, fmt.Errorf("parsing close: %w", err)
	}

	var volume int64
	if v.Volume != "" {
		vol, err := decimal.NewFromString(v.Volume)
		if err != nil {
			return nil, fmt.Errorf("parsing volume: %w", err)
		}
		volume = vol.IntPart()
	}

	return &models.StockPrice{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
