package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///weather_yield.db", cfg.DatabaseURL)
	assert.Equal(t, "wx_data", cfg.DataDir)
	assert.Equal(t, "yld_data/US_corn_grain_yield.txt", cfg.YieldFile)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.PageSizeDefault)
	assert.Equal(t, 1000, cfg.PageSizeMax)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.DBConnectTimeout)
	assert.False(t, cfg.RunLock)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
	assert.Equal(t, "ingestion-runs", cfg.KafkaRunsTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://wx:wx@db:5432/wx?sslmode=disable")
	t.Setenv("DATA_DIR", "/data/wx")
	t.Setenv("YIELD_FILE", "/data/yield.txt")
	t.Setenv("BATCH_SIZE", "500")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PAGE_SIZE_DEFAULT", "25")
	t.Setenv("PAGE_SIZE_MAX", "50")
	t.Setenv("STATS_CACHE_TTL", "0s")
	t.Setenv("DB_CONNECT_TIMEOUT", "5s")
	t.Setenv("RUN_LOCK", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_RUNS_TOPIC", "wx-runs")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://wx:wx@db:5432/wx?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "/data/wx", cfg.DataDir)
	assert.Equal(t, "/data/yield.txt", cfg.YieldFile)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 25, cfg.PageSizeDefault)
	assert.Equal(t, 50, cfg.PageSizeMax)
	assert.Equal(t, time.Duration(0), cfg.StatsCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.DBConnectTimeout)
	assert.True(t, cfg.RunLock)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "wx-runs", cfg.KafkaRunsTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	for _, v := range []string{"0", "-5", "ten"} {
		t.Setenv("BATCH_SIZE", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "BATCH_SIZE")
	}
}

func TestLoad_PageSizeDefaultAboveMax(t *testing.T) {
	t.Setenv("PAGE_SIZE_DEFAULT", "200")
	t.Setenv("PAGE_SIZE_MAX", "100")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE_DEFAULT")
}

func TestLoad_InvalidConnectTimeout(t *testing.T) {
	t.Setenv("DB_CONNECT_TIMEOUT", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_CONNECT_TIMEOUT")
}

func TestLoad_InvalidCacheTTL(t *testing.T) {
	t.Setenv("STATS_CACHE_TTL", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATS_CACHE_TTL")
}

func TestLoad_UnsupportedDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "mysql://localhost/wx")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_PostgresqlScheme(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/wx")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://localhost/wx", cfg.DatabaseURL)
}
