package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
)

// WeatherIngester loads a directory of station files as one ingestion run:
// raw capture, curated merge, conflict detection, then run completion.
type WeatherIngester struct {
	store     WeatherStore
	publisher RunPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	runLock   bool
}

// WeatherOption configures a WeatherIngester.
type WeatherOption func(*WeatherIngester)

// WithPublisher announces each finished run through p.
func WithPublisher(p RunPublisher) WeatherOption {
	return func(w *WeatherIngester) { w.publisher = p }
}

// WithRunLock makes each run hold the dataset lock for its whole duration.
func WithRunLock(enabled bool) WeatherOption {
	return func(w *WeatherIngester) { w.runLock = enabled }
}

// NewWeatherIngester creates a WeatherIngester.
func NewWeatherIngester(store WeatherStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts ...WeatherOption) *WeatherIngester {
	w := &WeatherIngester{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ingest runs one weather ingestion over the *.txt files in dataDir, flushing
// raw rows in batches of at most batchSize. A missing directory fails before
// any run is recorded. Any later failure leaves the run unfinished with an
// ERROR event describing it.
func (w *WeatherIngester) Ingest(ctx context.Context, dataDir string, batchSize int) (domain.RunCounts, error) {
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return domain.RunCounts{}, fmt.Errorf("%w: weather directory %s", domain.ErrSourceNotFound, dataDir)
	}

	if w.runLock {
		release, err := w.store.AcquireRunLock(ctx, domain.DatasetWeather)
		if err != nil {
			return domain.RunCounts{}, fmt.Errorf("acquire weather run lock: %w", err)
		}
		defer release()
	}

	startedAt := w.clock.Now()
	runID, err := w.store.CreateRun(ctx, domain.DatasetWeather, startedAt)
	if err != nil {
		return domain.RunCounts{}, err
	}
	logger := w.logger.With("run_id", runID)
	logger.Info("weather ingestion started", "data_dir", dataDir)

	counts, err := w.run(ctx, logger, runID, dataDir, batchSize, startedAt)
	if err != nil {
		w.metrics.Runs.WithLabelValues("failed").Inc()
		logger.Error("weather ingestion failed", "error", err)
		// The run stays unfinished; record why on a context that survives cancellation.
		if evErr := w.store.AppendEvent(context.WithoutCancel(ctx), runID, domain.LevelError, err.Error(), w.clock.Now()); evErr != nil {
			logger.Warn("record failure event", "error", evErr)
		}
		return counts, err
	}
	w.metrics.Runs.WithLabelValues("finished").Inc()
	return counts, nil
}

func (w *WeatherIngester) run(ctx context.Context, logger *slog.Logger, runID int64, dataDir string, batchSize int, startedAt time.Time) (domain.RunCounts, error) {
	var counts domain.RunCounts
	if err := w.event(ctx, runID, "weather ingestion started"); err != nil {
		return counts, err
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.txt"))
	if err != nil {
		return counts, fmt.Errorf("list %s: %w", dataDir, err)
	}
	sort.Strings(files)

	stageStart := w.clock.Now()
	effective := w.store.RawBatchSize(batchSize)
	processed, inserted, err := w.loadRaw(ctx, runID, files, effective, startedAt)
	counts.Processed, counts.RawInserted = processed, inserted
	if err != nil {
		return counts, err
	}
	observeStage(w.metrics, w.clock, stageRawLoad, stageStart)
	logger.Info("raw load completed", "files", len(files), "processed", processed, "raw_inserted", inserted, "batch_size", effective)
	if err := w.event(ctx, runID, fmt.Sprintf("raw load completed: files=%d processed=%d raw_inserted=%d", len(files), processed, inserted)); err != nil {
		return counts, err
	}

	stageStart = w.clock.Now()
	if err := w.store.MergeRun(ctx, runID); err != nil {
		return counts, err
	}
	observeStage(w.metrics, w.clock, stageCuratedMerge, stageStart)
	if err := w.event(ctx, runID, fmt.Sprintf("curated upsert completed for run %d", runID)); err != nil {
		return counts, err
	}

	stageStart = w.clock.Now()
	conflicts, err := w.store.DetectConflicts(ctx, runID, stageStart)
	if err != nil {
		return counts, err
	}
	counts.Conflicts = conflicts
	w.metrics.ConflictsLogged.Add(float64(conflicts))
	observeStage(w.metrics, w.clock, stageConflictDetect, stageStart)
	if err := w.event(ctx, runID, fmt.Sprintf("conflicts logged: %d", conflicts)); err != nil {
		return counts, err
	}

	pairs, err := w.store.CountRunPairs(ctx, runID)
	if err != nil {
		return counts, err
	}
	counts.CuratedUpserted = pairs
	w.metrics.CuratedUpserted.Add(float64(pairs))

	finishedAt := w.clock.Now()
	if err := w.store.AppendEvent(ctx, runID, domain.LevelInfo,
		fmt.Sprintf("processed=%d raw_inserted=%d curated_upserted=%d", counts.Processed, counts.RawInserted, counts.CuratedUpserted),
		finishedAt); err != nil {
		return counts, err
	}
	if err := w.store.FinishRun(ctx, runID, counts, finishedAt); err != nil {
		return counts, err
	}
	logger.Info("weather ingestion finished",
		"processed", counts.Processed,
		"raw_inserted", counts.RawInserted,
		"curated_upserted", counts.CuratedUpserted,
		"conflicts", counts.Conflicts,
	)

	w.publish(ctx, logger, domain.IngestionRun{
		ID:         runID,
		Dataset:    domain.DatasetWeather,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		RunCounts:  counts,
	})
	return counts, nil
}

// loadRaw streams every file into the raw store. A batch may span files; each
// flush commits on its own.
func (w *WeatherIngester) loadRaw(ctx context.Context, runID int64, files []string, batchSize int, ingestedAt time.Time) (processed, inserted int64, err error) {
	batch := make([]domain.RawObservation, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := w.store.InsertRawBatch(ctx, batch)
		if err != nil {
			return err
		}
		inserted += n
		w.metrics.RawRowsInserted.Add(float64(n))
		w.metrics.RawBatchSize.Observe(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		stationID := domain.StationIDFromPath(path)
		if err := w.store.EnsureStation(ctx, stationID); err != nil {
			return processed, inserted, err
		}
		err := scanStationFile(ctx, path, func(lineNo int, line domain.ParsedLine) error {
			batch = append(batch, toRaw(runID, stationID, path, lineNo, line, ingestedAt))
			processed++
			w.metrics.LinesProcessed.Inc()
			if len(batch) >= batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return processed, inserted, err
		}
	}
	if err := flush(); err != nil {
		return processed, inserted, err
	}
	return processed, inserted, nil
}

func (w *WeatherIngester) event(ctx context.Context, runID int64, message string) error {
	return w.store.AppendEvent(ctx, runID, domain.LevelInfo, message, w.clock.Now())
}

// publish announces a finished run. Failures are recorded but never undo the run.
func (w *WeatherIngester) publish(ctx context.Context, logger *slog.Logger, run domain.IngestionRun) {
	if w.publisher == nil {
		return
	}
	err := w.publisher.PublishRun(ctx, run)
	if err == nil {
		logger.Debug("run summary published")
		return
	}
	logger.Warn("publish run summary failed", "error", err)
	msg := "run summary publish failed: " + err.Error()
	if evErr := w.store.AppendEvent(ctx, run.ID, domain.LevelWarn, msg, w.clock.Now()); evErr != nil && !errors.Is(evErr, context.Canceled) {
		logger.Warn("record publish failure event", "error", evErr)
	}
}
