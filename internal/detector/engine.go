package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/models"
)

// Per-symbol processing outcomes reported in Summary.ByStatus.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusError   = "error"
)

// SeriesSource supplies per-symbol OHLCV series, ascending by timestamp.
// An empty series (not an error) means no data exists for the symbol.
type SeriesSource interface {
	FetchSeries(ctx context.Context, symbol string, lookbackDays int) ([]Candle, error)
}

// AnomalySink persists a batch of anomaly records and reports how many
// were written.
type AnomalySink interface {
	SaveAnomalies(ctx context.Context, anomalies []models.Anomaly) (int, error)
}

// EventPublisher announces a persisted detection batch to downstream
// consumers. Publish failures are advisory.
type EventPublisher interface {
	PublishAnomalies(ctx context.Context, symbol string, anomalies []models.Anomaly) error
}

// AnomalyKey identifies one (symbol, method, type) detection bucket in a
// run summary.
type AnomalyKey struct {
	Symbol      string
	Method      string
	AnomalyType string
}

// Summary is the per-run tally the engine returns instead of exporting
// metrics itself; callers convert it into whatever observability they run.
type Summary struct {
	SymbolsProcessed int
	TotalAnomalies   int
	ByStatus         map[string]int
	ByDetector       map[string]int
	ByLabel          map[AnomalyKey]int
	Errors           []error
	Duration         time.Duration
}

// EngineConfig wires an Engine. Source, Sink and at least one detector are
// required; Publisher is optional.
type EngineConfig struct {
	Source       SeriesSource
	Sink         AnomalySink
	Publisher    EventPublisher
	Detectors    []Detector
	LookbackDays int
}

// Engine runs every registered detector over every symbol and persists the
// combined results. It holds no state across runs beyond its fixed
// configuration.
type Engine struct {
	source       SeriesSource
	sink         AnomalySink
	publisher    EventPublisher
	detectors    []Detector
	lookbackDays int
}

// NewEngine validates construction-time configuration; misconfiguration
// here is the only hard stop in the detection lifecycle.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("engine: series source is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("engine: anomaly sink is required")
	}
	if len(cfg.Detectors) == 0 {
		return nil, errors.New("engine: at least one detector is required")
	}
	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("engine: invalid lookback days %d", cfg.LookbackDays)
	}
	names := []string{}
	for _, d := range cfg.Detectors {
		names = append(names, d.Name())
	}
	log.Info().
		Strs("detectors", names).
		Int("lookback_days", cfg.LookbackDays).
		Msg("initialized detection engine")

	return &Engine{
		source:       cfg.Source,
		sink:         cfg.Sink,
		publisher:    cfg.Publisher,
		detectors:    cfg.Detectors,
		lookbackDays: cfg.LookbackDays,
	}, nil
}

// DefaultDetectors builds the full strategy set from service configuration.
func DefaultDetectors(cfg config.DetectionConfig) []Detector {
	return []Detector{
		NewZScoreDetector(cfg.ZScoreThreshold, cfg.RollingWindow),
		NewIQRDetector(cfg.IQRMultiplier, cfg.RollingWindow),
		NewIsolationForestDetector(cfg.Contamination, cfg.NEstimators),
		NewMovingAverageDetector(cfg.MAWindow, cfg.MAThresholdPct),
		NewTechnicalDetector(cfg.RSIPeriod, cfg.BBPeriod, cfg.BBStd),
		NewVolumeDetector(cfg.VolumeThreshold, cfg.VolumeWindow),
	}
}

// Run processes every symbol once, sequentially. A symbol's failure never
// aborts the run; all recoverable failures end up in the returned Summary.
func (e *Engine) Run(ctx context.Context, symbols []string) Summary {
	start := time.Now()
	summary := Summary{
		ByStatus:   map[string]int{},
		ByDetector: map[string]int{},
		ByLabel:    map[AnomalyKey]int{},
	}

	log.Info().Int("symbols", len(symbols)).Msg("starting anomaly detection run")

	for _, symbol := range symbols {
		e.runSymbol(ctx, symbol, &summary)
		summary.SymbolsProcessed++
	}

	summary.Duration = time.Since(start)
	log.Info().
		Int("total_anomalies", summary.TotalAnomalies).
		Int("symbols_processed", summary.SymbolsProcessed).
		Dur("duration", summary.Duration).
		Msg("detection run completed")
	return summary
}

func (e *Engine) runSymbol(ctx context.Context, symbol string, summary *Summary) {
	series, err := e.source.FetchSeries(ctx, symbol, e.lookbackDays)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("failed to fetch series")
		summary.ByStatus[StatusError]++
		summary.Errors = append(summary.Errors, fmt.Errorf("fetch %s: %w", symbol, err))
		return
	}
	if len(series) == 0 {
		log.Warn().Str("symbol", symbol).Msg("no data available")
		summary.ByStatus[StatusNoData]++
		return
	}

	log.Info().
		Str("symbol", symbol).
		Int("data_points", len(series)).
		Time("from", series[0].Timestamp).
		Time("to", series[len(series)-1].Timestamp).
		Msg("processing symbol")

	var all []models.Anomaly
	for _, d := range e.detectors {
		anomalies, err := runDetector(d, series)
		if err != nil {
			derr := &DetectionError{Detector: d.Name(), Symbol: symbol, Err: err}
			log.Error().Err(err).
				Str("detector", d.Name()).
				Str("symbol", symbol).
				Msg("detector failed")
			summary.Errors = append(summary.Errors, derr)
			continue
		}
		summary.ByDetector[d.Name()] += len(anomalies)
		for _, a := range anomalies {
			summary.ByLabel[AnomalyKey{Symbol: a.Symbol, Method: a.Method, AnomalyType: a.AnomalyType}]++
		}
		all = append(all, anomalies...)
	}

	if len(all) > 0 {
		saved, err := e.sink.SaveAnomalies(ctx, all)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to save anomalies")
			summary.ByStatus[StatusError]++
			summary.Errors = append(summary.Errors, fmt.Errorf("save %s: %w", symbol, err))
			return
		}
		log.Info().Str("symbol", symbol).Int("saved", saved).Msg("saved anomalies")

		if e.publisher != nil {
			if err := e.publisher.PublishAnomalies(ctx, symbol, all); err != nil {
				log.Warn().Err(err).Str("symbol", symbol).Msg("failed to publish anomaly event")
			}
		}
	}

	summary.TotalAnomalies += len(all)
	summary.ByStatus[StatusSuccess]++
}

// runDetector guards one detector invocation; a panic inside a strategy is
// folded into the same error path as a returned error.
func runDetector(d Detector, series []Candle) (anomalies []models.Anomaly, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(series)
}
