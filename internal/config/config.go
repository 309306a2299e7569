package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	DataDir     string
	YieldFile   string
	BatchSize   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PageSizeDefault int
	PageSizeMax     int
	StatsCacheTTL   time.Duration

	DBConnectTimeout time.Duration
	RunLock          bool

	// Run-summary publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers   []string
	KafkaRunsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := parsePositiveInt("BATCH_SIZE", 10000)
	if err != nil {
		return nil, err
	}
	pageSizeDefault, err := parsePositiveInt("PAGE_SIZE_DEFAULT", 100)
	if err != nil {
		return nil, err
	}
	pageSizeMax, err := parsePositiveInt("PAGE_SIZE_MAX", 1000)
	if err != nil {
		return nil, err
	}
	if pageSizeDefault > pageSizeMax {
		return nil, errors.New("PAGE_SIZE_DEFAULT must not exceed PAGE_SIZE_MAX")
	}

	connectTimeout, err := parseDuration("DB_CONNECT_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("STATS_CACHE_TTL", "30s", true)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DatabaseURL:      sharedcfg.EnvOrDefault("DATABASE_URL", "sqlite:///weather_yield.db"),
		DataDir:          sharedcfg.EnvOrDefault("DATA_DIR", "wx_data"),
		YieldFile:        sharedcfg.EnvOrDefault("YIELD_FILE", "yld_data/US_corn_grain_yield.txt"),
		BatchSize:        batchSize,
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		PageSizeDefault:  pageSizeDefault,
		PageSizeMax:      pageSizeMax,
		StatsCacheTTL:    cacheTTL,
		DBConnectTimeout: connectTimeout,
		RunLock:          os.Getenv("RUN_LOCK") == "true",
		KafkaBrokers:     brokers,
		KafkaRunsTopic:   sharedcfg.EnvOrDefault("KAFKA_RUNS_TOPIC", "ingestion-runs"),
	}

	if !strings.HasPrefix(cfg.DatabaseURL, "sqlite://") &&
		!strings.HasPrefix(cfg.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return nil, errors.New("DATABASE_URL must use sqlite://, postgres:// or postgresql://")
	}
	if cfg.KafkaRunsTopic == "" {
		return nil, errors.New("KAFKA_RUNS_TOPIC is required")
	}

	return cfg, nil
}

// PublishEnabled reports whether run summaries should be sent to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
