package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/observability"
	"github.com/couchcryptid/weather-yield-etl/internal/pipeline"
	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

var testStart = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

// --- fixtures ---

func writeStationFile(t *testing.T, dir, station string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, station+".txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wx.db")
	s, err := storage.Open(context.Background(), "sqlite:///"+path, 5*time.Second, observability.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newWeatherIngester(store pipeline.WeatherStore, opts ...pipeline.WeatherOption) (*pipeline.WeatherIngester, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(testStart)
	return pipeline.NewWeatherIngester(store, clock, observability.DiscardLogger(), metrics, opts...), metrics
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func count(t *testing.T, s *storage.Store, table string) int64 {
	t.Helper()
	n, err := s.CountRows(context.Background(), table)
	require.NoError(t, err)
	return n
}

func i64(v int64) *int64 { return &v }

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

// --- mocks ---

type mockPublisher struct {
	mu   sync.Mutex
	runs []domain.IngestionRun
	err  error
}

func (m *mockPublisher) PublishRun(_ context.Context, run domain.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

// lockedStore reports the weather lock as held by another process.
type lockedStore struct {
	*storage.Store
}

func (lockedStore) AcquireRunLock(context.Context, string) (func(), error) {
	return nil, domain.ErrRunInProgress
}

// failingMergeStore fails the curated merge after raw rows are committed.
type failingMergeStore struct {
	*storage.Store
}

func (failingMergeStore) MergeRun(context.Context, int64) error {
	return errMergeBroken
}
