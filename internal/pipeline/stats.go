package pipeline

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-yield-etl/internal/observability"
)

// StatsAggregator rebuilds per-station yearly statistics from the curated store.
type StatsAggregator struct {
	store   StatsStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStatsAggregator creates a StatsAggregator.
func NewStatsAggregator(store StatsStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *StatsAggregator {
	return &StatsAggregator{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Compute upserts every (station, year) aggregate and returns how many rows it wrote.
func (a *StatsAggregator) Compute(ctx context.Context) (int64, error) {
	start := a.clock.Now()
	n, err := a.store.ComputeStats(ctx)
	if err != nil {
		a.logger.Error("stats computation failed", "error", err)
		return 0, err
	}
	observeStage(a.metrics, a.clock, stageStats, start)
	a.metrics.StatsRowsUpserted.Add(float64(n))
	a.logger.Info("stats computed", "rows_upserted", n)
	return n, nil
}
