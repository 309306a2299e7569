package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
	"github.com/couchcryptid/weather-yield-etl/internal/pipeline"
	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

var errMergeBroken = errors.New("merge broken")

var scenarioLines = []string{
	"19850101 10 -20 30",
	"19850101 15 -20 30",
	"19850102 -9999 -9999 -9999",
}

func TestWeatherIngester_Scenario(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	ing, metrics := newWeatherIngester(store)

	counts, err := ing.Ingest(ctx, dir, 1)
	require.NoError(t, err)
	want := domain.RunCounts{Processed: 3, RawInserted: 3, CuratedUpserted: 2, Conflicts: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("first run counts (-want +got):\n%s", diff)
	}

	assert.Equal(t, int64(3), count(t, store, "weather_records_raw"))
	assert.Equal(t, int64(2), count(t, store, "weather_records"))
	assert.Equal(t, int64(1), count(t, store, "weather_conflicts"))

	first, ok, err := store.GetCurated(ctx, "TESTSTATION", day("1985-01-01"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, i64(15), first.MaxTempTenthsC)
	assert.Equal(t, i64(-20), first.MinTempTenthsC)
	assert.Equal(t, i64(30), first.PrecipTenthsMM)

	second, ok, err := store.GetCurated(ctx, "TESTSTATION", day("1985-01-02"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, second.MaxTempTenthsC)
	assert.Nil(t, second.MinTempTenthsC)
	assert.Nil(t, second.PrecipTenthsMM)

	// Re-ingesting the same directory appends raw rows but leaves curation stable.
	counts, err = ing.Ingest(ctx, dir, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCounts{Processed: 3, RawInserted: 3, CuratedUpserted: 2, Conflicts: 1}, counts)
	assert.Equal(t, int64(6), count(t, store, "weather_records_raw"))
	assert.Equal(t, int64(2), count(t, store, "weather_records"))
	assert.Equal(t, int64(2), count(t, store, "weather_conflicts"))

	again, _, err := store.GetCurated(ctx, "TESTSTATION", day("1985-01-01"))
	require.NoError(t, err)
	assert.Equal(t, i64(15), again.MaxTempTenthsC)
	assert.NotEqual(t, first.MaxTempRawID, again.MaxTempRawID, "the newer run's row now wins")

	assert.InDelta(t, 6, testutil.ToFloat64(metrics.LinesProcessed), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(metrics.RawRowsInserted), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ConflictsLogged), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Runs.WithLabelValues("finished")), 0)
}

func TestWeatherIngester_ConflictReferencesLosingRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	ing, _ := newWeatherIngester(store)
	_, err := ing.Ingest(ctx, dir, 100)
	require.NoError(t, err)

	conflicts, _, err := store.ListConflicts(ctx, storage.ConflictFilter{}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, domain.FieldMaxTemp, c.Field)
	assert.Equal(t, i64(10), c.IncomingValue)
	assert.Equal(t, i64(15), c.ExistingValue)
	assert.Equal(t, 1, c.SourceLine)
	assert.Equal(t, filepath.Join(dir, "TESTSTATION.txt"), c.SourceFile)
	assert.Less(t, *c.IncomingRawID, *c.ExistingRawID)
}

func TestWeatherIngester_RunLedger(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	ing, _ := newWeatherIngester(store)
	counts, err := ing.Ingest(ctx, dir, 2)
	require.NoError(t, err)

	runs, _, err := store.ListRuns(ctx, storage.RunFilter{}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, domain.DatasetWeather, run.Dataset)
	assert.True(t, run.Finished())
	assert.Equal(t, counts, run.RunCounts)
	assert.True(t, testStart.Equal(run.StartedAt))

	events, _, err := store.ListEvents(ctx, storage.EventFilter{RunID: run.ID}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	var messages []string
	for i := len(events) - 1; i >= 0; i-- {
		assert.Equal(t, domain.LevelInfo, events[i].Level)
		messages = append(messages, events[i].Message)
	}
	assert.Equal(t, []string{
		"weather ingestion started",
		"raw load completed: files=1 processed=3 raw_inserted=3",
		"curated upsert completed for run 1",
		"conflicts logged: 1",
		"processed=3 raw_inserted=3 curated_upserted=2",
	}, messages)
}

func TestWeatherIngester_SkipsWrongTokenCount(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "USC00110072",
		"19850101 10 -20 30",
		"",
		"19850102 10 -20",
		"19850103 10 -20 30 40",
		"19850104\t11\t-21\t31",
	)

	ing, _ := newWeatherIngester(store)
	counts, err := ing.Ingest(ctx, dir, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Processed)
	assert.Equal(t, int64(2), counts.RawInserted)

	ok, err := store.StationExists(ctx, "USC00110072")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWeatherIngester_IgnoresNonTxtFiles(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "A", "19850101 1 2 3")
	require.NoError(t, writeFile(filepath.Join(dir, "notes.md"), "19850101 1 2 3\n"))

	ing, _ := newWeatherIngester(store)
	counts, err := ing.Ingest(ctx, dir, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Processed)
	assert.Equal(t, int64(1), count(t, store, "weather_stations"))
}

func TestWeatherIngester_MalformedFieldAbortsRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "A", "19850101 1 2 3", "19850102 4 5 6")
	writeStationFile(t, dir, "B", "19850101 1 2 3", "1985010X 1 2 3")

	ing, metrics := newWeatherIngester(store)
	_, err := ing.Ingest(ctx, dir, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedField)
	assert.Contains(t, err.Error(), "B.txt:2")

	// Batches committed before the bad line stay; nothing is merged.
	assert.Equal(t, int64(3), count(t, store, "weather_records_raw"))
	assert.Zero(t, count(t, store, "weather_records"))

	runs, _, err := store.ListRuns(ctx, storage.RunFilter{}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].FinishedAt)

	events, _, err := store.ListEvents(ctx, storage.EventFilter{RunID: runs[0].ID, Level: domain.LevelError}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "malformed field")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("failed")), 0)
}

func TestWeatherIngester_StorageFailureLeavesRunUnfinished(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	ing, _ := newWeatherIngester(failingMergeStore{store})
	_, err := ing.Ingest(ctx, dir, 1)
	require.ErrorIs(t, err, errMergeBroken)

	assert.Equal(t, int64(3), count(t, store, "weather_records_raw"))
	runs, _, err := store.ListRuns(ctx, storage.RunFilter{}, storage.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Finished())
	assert.Zero(t, runs[0].Processed, "counts are only written at completion")
}

func TestWeatherIngester_MissingDirectoryCreatesNoRun(t *testing.T) {
	store := openStore(t)
	ing, _ := newWeatherIngester(store)

	_, err := ing.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent"), 10)
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.Zero(t, count(t, store, "ingestion_runs"))
}

func TestWeatherIngester_EmptyDirectory(t *testing.T) {
	store := openStore(t)
	ing, _ := newWeatherIngester(store)

	counts, err := ing.Ingest(context.Background(), t.TempDir(), 10)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCounts{}, counts)
	assert.Equal(t, int64(1), count(t, store, "ingestion_runs"))
}

func TestWeatherIngester_RunLockHeld(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "A", "19850101 1 2 3")

	ing, _ := newWeatherIngester(lockedStore{store}, pipeline.WithRunLock(true))
	_, err := ing.Ingest(context.Background(), dir, 10)
	require.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Zero(t, count(t, store, "ingestion_runs"))

	// Without the option the lock is never consulted.
	ing, _ = newWeatherIngester(lockedStore{store})
	_, err = ing.Ingest(context.Background(), dir, 10)
	require.NoError(t, err)
}

func TestWeatherIngester_PublishesFinishedRun(t *testing.T) {
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	pub := &mockPublisher{}
	ing, _ := newWeatherIngester(store, pipeline.WithPublisher(pub))
	counts, err := ing.Ingest(context.Background(), dir, 10)
	require.NoError(t, err)

	require.Len(t, pub.runs, 1)
	run := pub.runs[0]
	assert.Equal(t, counts, run.RunCounts)
	assert.Equal(t, domain.DatasetWeather, run.Dataset)
	require.NotNil(t, run.FinishedAt)
}

func TestWeatherIngester_PublishFailureDoesNotFailRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "TESTSTATION", scenarioLines...)

	ing, _ := newWeatherIngester(store, pipeline.WithPublisher(&mockPublisher{err: errors.New("broker down")}))
	_, err := ing.Ingest(ctx, dir, 10)
	require.NoError(t, err)

	runs, _, err := store.ListRuns(ctx, storage.RunFilter{}, storage.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Finished())

	warns, _, err := store.ListEvents(ctx, storage.EventFilter{Level: domain.LevelWarn}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "broker down")
}

func TestStatsAggregator_Compute(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	writeStationFile(t, dir, "USC1",
		"19850101 100 -50 10",
		"19850102 -9999 -9999 -9999",
		"19860101 200 -10 -9999",
	)
	ing, _ := newWeatherIngester(store)
	_, err := ing.Ingest(ctx, dir, 10)
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewStatsAggregator(store, clockwork.NewFakeClockAt(testStart), observability.DiscardLogger(), metrics)
	n, err := agg.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.StatsRowsUpserted), 0)

	stats, _, err := store.ListStats(ctx, storage.StatsFilter{Year: 1985}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.NotNil(t, stats[0].AvgMaxTempC)
	assert.InDelta(t, 10.0, *stats[0].AvgMaxTempC, 1e-9)
	require.NotNil(t, stats[0].TotalPrecipCM)
	assert.InDelta(t, 0.1, *stats[0].TotalPrecipCM, 1e-9)

	stats, _, err = store.ListStats(ctx, storage.StatsFilter{Year: 1986}, storage.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Nil(t, stats[0].TotalPrecipCM)
}

func TestYieldIngester_Ingest(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	path := filepath.Join(t.TempDir(), "US_corn_grain_yield.txt")
	require.NoError(t, writeFile(path, "1985\t225447\n1986\t208944\nbogus\n1987 181143 extra\n"))

	metrics := observability.NewMetricsForTesting()
	ing := pipeline.NewYieldIngester(store, clockwork.NewFakeClockAt(testStart), observability.DiscardLogger(), metrics)

	counts, err := ing.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, domain.YieldCounts{Processed: 2, Inserted: 2}, counts)

	counts, err = ing.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, domain.YieldCounts{Processed: 2, Inserted: 0}, counts)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.YieldRowsInserted), 0)
}

func TestYieldIngester_Errors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	ing := pipeline.NewYieldIngester(store, clockwork.NewFakeClockAt(testStart), observability.DiscardLogger(), observability.NewMetricsForTesting())

	_, err := ing.Ingest(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, domain.ErrSourceNotFound)

	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, writeFile(path, "1985 225447\n1986 lots\n"))
	_, err = ing.Ingest(ctx, path)
	require.ErrorIs(t, err, domain.ErrMalformedField)
	assert.Contains(t, err.Error(), "bad.txt:2")
	assert.Zero(t, count(t, store, "crop_yield"))
}
