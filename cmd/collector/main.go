package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/database"
	"github.com/marketpulse/marketpulse/internal/fetcher"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

func main() {
	cfg := config.Load()
	setupLogging()

	log.Info().
		Int("symbols", len(cfg.Detection.Symbols)).
		Int("history_days", cfg.Fetcher.HistoryDays).
		Msg("starting data collector service")

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations("db/migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	client := fetcher.NewClient(cfg.Fetcher)

	go serveMetrics(cfg.Metrics.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	collect(ctx, client, db, cfg)

	ticker := time.NewTicker(cfg.Detection.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			collect(ctx, client, db, cfg)
		}
	}
}

func collect(ctx context.Context, client *fetcher.Client, db *database.DB, cfg *config.Config) {
	log.Info().Msg("starting collection run")
	start := time.Now()

	results := client.FetchAll(ctx, cfg.Detection.Symbols, cfg.Fetcher.HistoryDays)

	var saved int
	for symbol, prices := range results {
		if err := db.CreateStockPriceBatch(prices); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to save prices")
			metrics.FetchRequests.WithLabelValues(symbol, "error").Inc()
			continue
		}
		saved += len(prices)
		metrics.FetchRequests.WithLabelValues(symbol, "success").Inc()
	}
	metrics.RecordsSaved.Add(float64(saved))

	log.Info().
		Int("symbols", len(results)).
		Int("records", saved).
		Dur("duration", time.Since(start)).
		Msg("collection run completed")
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("port", port).Msg("metrics server started")
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
}

func setupLogging() {
	lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}
