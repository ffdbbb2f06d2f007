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
	"github.com/marketpulse/marketpulse/internal/detector"
	"github.com/marketpulse/marketpulse/internal/kafka"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

func main() {
	cfg := config.Load()
	setupLogging()

	log.Info().
		Int("symbols", len(cfg.Detection.Symbols)).
		Int("lookback_days", cfg.Detection.LookbackDays).
		Msg("starting anomaly detection service")

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations("db/migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	engineCfg := detector.EngineConfig{
		Source:       db,
		Sink:         db,
		Detectors:    detector.DefaultDetectors(cfg.Detection),
		LookbackDays: cfg.Detection.LookbackDays,
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		engineCfg.Publisher = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
	}

	engine, err := detector.NewEngine(engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build detection engine")
	}

	go serveMetrics(cfg.Metrics.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	// Initial run, then on the configured interval.
	runOnce(ctx, engine, cfg.Detection.Symbols)

	ticker := time.NewTicker(cfg.Detection.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, engine, cfg.Detection.Symbols)
		}
	}
}

func runOnce(ctx context.Context, engine *detector.Engine, symbols []string) {
	summary := engine.Run(ctx, symbols)
	metrics.RecordSummary(summary)
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
