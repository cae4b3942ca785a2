package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const maxBatchSize = 1000

// Config holds all service settings, populated from environment variables.
// A .env file in the working directory is read first when present.
type Config struct {
	DataAddr        string        `env:"DATA_ADDR" envDefault:":8080"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":9090"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	StaticDir       string        `env:"STATIC_DIR"`

	// Data service.
	DatabaseURL      string        `env:"DATABASE_URL" envDefault:"postgres://postgres@localhost:5432/pickle?sslmode=disable"`
	GeoIPPath        string        `env:"GEOIP_PATH"`
	DefaultRegion    string        `env:"DEFAULT_REGION" envDefault:"AU"`
	StrictGeometry   bool          `env:"STRICT_GEOMETRY" envDefault:"false"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	ResponseCacheTTL time.Duration `env:"RESPONSE_CACHE_TTL" envDefault:"5m"`
	NewsBaseURL      string        `env:"NEWS_BASE_URL" envDefault:"https://news.google.com/rss/search"`
	NewsTimeout      time.Duration `env:"NEWS_TIMEOUT" envDefault:"5s"`

	// Ingest.
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"disease-stat-reports"`
	KafkaGroupID       string        `env:"KAFKA_GROUP_ID" envDefault:"pickle-ingest"`
	BatchSize          int           `env:"BATCH_SIZE" envDefault:"50"`
	BatchFlushInterval time.Duration `env:"BATCH_FLUSH_INTERVAL" envDefault:"500ms"`

	// Data client.
	DataAPIURL     string        `env:"DATA_API_URL" envDefault:"http://localhost:8080"`
	DataAPITimeout time.Duration `env:"DATA_API_TIMEOUT" envDefault:"10s"`
	DataCacheSize  int           `env:"DATA_CACHE_SIZE" envDefault:"256"`
	DataCacheTTL   time.Duration `env:"DATA_CACHE_TTL" envDefault:"10m"`
}

// Load reads configuration from the environment, applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.KafkaBrokers = parseBrokers(cfg.KafkaBrokers)
	cfg.DefaultRegion = strings.ToUpper(strings.TrimSpace(cfg.DefaultRegion))
	cfg.DataAPIURL = strings.TrimRight(cfg.DataAPIURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, d := range map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
		"NEWS_TIMEOUT":         c.NewsTimeout,
		"BATCH_FLUSH_INTERVAL": c.BatchFlushInterval,
		"DATA_API_TIMEOUT":     c.DataAPITimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", name)
		}
	}
	if c.ResponseCacheTTL < 0 {
		return errors.New("invalid RESPONSE_CACHE_TTL: must not be negative")
	}
	if c.DataCacheTTL < 0 {
		return errors.New("invalid DATA_CACHE_TTL: must not be negative")
	}
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("invalid BATCH_SIZE: must be between 1 and %d", maxBatchSize)
	}
	if c.DataCacheSize < 1 {
		return errors.New("invalid DATA_CACHE_SIZE: must be positive")
	}
	if c.RedisDB < 0 {
		return errors.New("invalid REDIS_DB: must not be negative")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.DefaultRegion == "" {
		return errors.New("DEFAULT_REGION is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	return nil
}

// parseBrokers trims entries and drops empty ones.
func parseBrokers(raw []string) []string {
	brokers := make([]string, 0, len(raw))
	for _, b := range raw {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
