package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for ingestion and
// aggregation.
type Metrics struct {
	LinesProcessed    prometheus.Counter
	RawRowsInserted   prometheus.Counter
	ConflictsLogged   prometheus.Counter
	CuratedUpserted   prometheus.Counter
	StatsRowsUpserted prometheus.Counter
	YieldRowsInserted prometheus.Counter

	// Runs by outcome: finished, failed.
	Runs *prometheus.CounterVec

	RawBatchSize  prometheus.Histogram
	StageDuration *prometheus.HistogramVec // labels: stage={raw_load,curated_merge,conflict_detect,stats,yield}
}

var stageBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LinesProcessed,
		m.RawRowsInserted,
		m.ConflictsLogged,
		m.CuratedUpserted,
		m.StatsRowsUpserted,
		m.YieldRowsInserted,
		m.Runs,
		m.RawBatchSize,
		m.StageDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LinesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "lines_processed_total",
			Help:      "Weather lines parsed and queued for raw insertion.",
		}),
		RawRowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "raw_rows_inserted_total",
			Help:      "Raw observation rows committed.",
		}),
		ConflictsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "conflicts_logged_total",
			Help:      "Raw/curated disagreements recorded.",
		}),
		CuratedUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "curated_upserted_total",
			Help:      "Distinct (station, date) pairs touched by finished runs.",
		}),
		StatsRowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "stats_rows_upserted_total",
			Help:      "Station/year statistics rows written.",
		}),
		YieldRowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "yield_rows_inserted_total",
			Help:      "Crop yield rows inserted.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxetl",
			Name:      "runs_total",
			Help:      "Weather ingestion runs by outcome.",
		}, []string{"outcome"}),
		RawBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wxetl",
			Name:      "raw_batch_size",
			Help:      "Rows per committed raw insert batch.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wxetl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
	}
}
