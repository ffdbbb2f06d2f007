package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Fetcher   FetcherConfig
	Detection DetectionConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// FetcherConfig holds market data provider configuration
type FetcherConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RequestDelay time.Duration
	HistoryDays  int
}

// DetectionConfig holds detector parameters and run scheduling
type DetectionConfig struct {
	Symbols      []string
	LookbackDays int
	RunInterval  time.Duration

	ZScoreThreshold float64
	RollingWindow   int

	IQRMultiplier float64

	Contamination float64
	NEstimators   int

	MAWindow       int
	MAThresholdPct float64

	RSIPeriod int
	BBPeriod  int
	BBStd     float64

	VolumeThreshold float64
	VolumeWindow    int
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Port string
}

var defaultSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA",
	"NVDA", "META", "SPY", "QQQ", "^VIX",
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mpuser"),
			Password: getEnv("DB_PASSWORD", "mppass123"),
			DBName:   getEnv("DB_NAME", "marketpulse"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "anomaly-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", time.Minute),
		},
		Fetcher: FetcherConfig{
			BaseURL:      getEnv("MARKET_DATA_URL", "https://api.twelvedata.com"),
			APIKey:       getEnv("MARKET_DATA_API_KEY", ""),
			Timeout:      getEnvDuration("MARKET_DATA_TIMEOUT", 30*time.Second),
			MaxRetries:   getEnvInt("MARKET_DATA_MAX_RETRIES", 3),
			RequestDelay: getEnvDuration("MARKET_DATA_REQUEST_DELAY", time.Second),
			HistoryDays:  getEnvInt("MARKET_DATA_HISTORY_DAYS", 365),
		},
		Detection: DetectionConfig{
			Symbols:      getEnvSlice("SYMBOLS", defaultSymbols),
			LookbackDays: getEnvInt("LOOKBACK_DAYS", 60),
			RunInterval:  getEnvDuration("RUN_INTERVAL", 24*time.Hour),

			ZScoreThreshold: getEnvFloat("ZSCORE_THRESHOLD", 2.5),
			RollingWindow:   getEnvInt("ROLLING_WINDOW", 30),

			IQRMultiplier: getEnvFloat("IQR_MULTIPLIER", 1.5),

			Contamination: getEnvFloat("ISOLATION_CONTAMINATION", 0.1),
			NEstimators:   getEnvInt("ISOLATION_ESTIMATORS", 100),

			MAWindow:       getEnvInt("MA_WINDOW", 20),
			MAThresholdPct: getEnvFloat("MA_THRESHOLD_PCT", 5.0),

			RSIPeriod: getEnvInt("RSI_PERIOD", 14),
			BBPeriod:  getEnvInt("BB_PERIOD", 20),
			BBStd:     getEnvFloat("BB_STD", 2.0),

			VolumeThreshold: getEnvFloat("VOLUME_THRESHOLD", 3.0),
			VolumeWindow:    getEnvInt("VOLUME_WINDOW", 20),
		},
		Metrics: MetricsConfig{
			Port: getEnv("METRICS_PORT", "8002"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
