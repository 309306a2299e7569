package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
)

// YieldIngester loads the national crop yield file with insert-if-absent semantics.
type YieldIngester struct {
	store   YieldStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewYieldIngester creates a YieldIngester.
func NewYieldIngester(store YieldStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *YieldIngester {
	return &YieldIngester{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Ingest reads path and inserts each year not already stored. Lines without
// exactly two tokens are skipped; an unparsable integer aborts the load
// before anything is written.
func (y *YieldIngester) Ingest(ctx context.Context, path string) (domain.YieldCounts, error) {
	start := y.clock.Now()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.YieldCounts{}, fmt.Errorf("%w: yield file %s", domain.ErrSourceNotFound, path)
	}
	if err != nil {
		return domain.YieldCounts{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	y.logger.Info("yield ingestion started", "file", path)

	var rows []domain.CropYield
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		row, ok, err := domain.ParseYieldLine(sc.Text())
		if err != nil {
			return domain.YieldCounts{}, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return domain.YieldCounts{}, fmt.Errorf("read %s: %w", path, err)
	}

	inserted, err := y.store.InsertYields(ctx, rows)
	if err != nil {
		return domain.YieldCounts{}, err
	}
	counts := domain.YieldCounts{Processed: int64(len(rows)), Inserted: inserted}
	observeStage(y.metrics, y.clock, stageYield, start)
	y.metrics.YieldRowsInserted.Add(float64(inserted))
	y.logger.Info("yield ingestion finished", "processed", counts.Processed, "inserted", counts.Inserted)
	return counts, nil
}
