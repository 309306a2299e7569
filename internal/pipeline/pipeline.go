// Package pipeline runs the weather ingestion, yield ingestion and statistics
// stages against a store.
package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
)

// WeatherStore is the persistence used by WeatherIngester.
type WeatherStore interface {
	CreateRun(ctx context.Context, dataset string, startedAt time.Time) (int64, error)
	AppendEvent(ctx context.Context, runID int64, level, message string, at time.Time) error
	FinishRun(ctx context.Context, runID int64, counts domain.RunCounts, finishedAt time.Time) error
	AcquireRunLock(ctx context.Context, dataset string) (func(), error)

	EnsureStation(ctx context.Context, stationID string) error
	RawBatchSize(requested int) int
	InsertRawBatch(ctx context.Context, rows []domain.RawObservation) (int64, error)
	MergeRun(ctx context.Context, runID int64) error
	DetectConflicts(ctx context.Context, runID int64, createdAt time.Time) (int64, error)
	CountRunPairs(ctx context.Context, runID int64) (int64, error)
}

// StatsStore is the persistence used by StatsAggregator.
type StatsStore interface {
	ComputeStats(ctx context.Context) (int64, error)
}

// YieldStore is the persistence used by YieldIngester.
type YieldStore interface {
	InsertYields(ctx context.Context, rows []domain.CropYield) (int64, error)
}

// RunPublisher announces finished runs to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, run domain.IngestionRun) error
}

// Pipeline stage labels for observability.Metrics.StageDuration.
const (
	stageRawLoad        = "raw_load"
	stageCuratedMerge   = "curated_merge"
	stageConflictDetect = "conflict_detect"
	stageStats          = "stats"
	stageYield          = "yield"
)

func observeStage(m *observability.Metrics, clock clockwork.Clock, stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(clock.Since(start).Seconds())
}
