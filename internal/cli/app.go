package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-yield-etl/internal/config"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

var (
	metricsOnce sync.Once
	metrics     *observability.Metrics
)

// processMetrics registers the Prometheus collectors once per process.
func processMetrics() *observability.Metrics {
	metricsOnce.Do(func() { metrics = observability.NewMetrics() })
	return metrics
}

// app bundles what every subcommand needs: configuration, logging, metrics and
// an open store.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	store   *storage.Store
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := observability.NewLogger(cfg)

	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: processMetrics(),
		clock:   clockwork.NewRealClock(),
		store:   store,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}
