package domain

import "time"

// Dataset names recorded on ingestion runs.
const (
	DatasetWeather = "weather"
	DatasetYield   = "yield"
)

// Event severity levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// RunCounts are the tallies reported by a weather ingestion.
type RunCounts struct {
	Processed       int64 `json:"processed"`
	RawInserted     int64 `json:"raw_inserted"`
	CuratedUpserted int64 `json:"curated_upserted"`
	Conflicts       int64 `json:"conflicts"`
}

// IngestionRun is one execution of the ingestion pipeline. A nil FinishedAt
// means the run never completed.
type IngestionRun struct {
	ID         int64      `json:"id"`
	Dataset    string     `json:"dataset"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	RunCounts
}

// Finished reports whether the run reached successful completion.
func (r IngestionRun) Finished() bool {
	return r.FinishedAt != nil
}

// Status returns "finished" or "unfinished"; an unfinished run is either still
// in progress or was abandoned.
func (r IngestionRun) Status() string {
	if r.Finished() {
		return "finished"
	}
	return "unfinished"
}

// IngestionEvent is an append-only audit entry attached to a run.
type IngestionEvent struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"ingestion_run_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// YieldCounts are the tallies reported by a yield ingestion.
type YieldCounts struct {
	Processed int64 `json:"processed"`
	Inserted  int64 `json:"inserted"`
}
