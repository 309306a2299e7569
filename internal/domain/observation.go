package domain

import "time"

// Field names a reconciled reading column. The string value is the column name
// shared by the raw and curated tables.
type Field string

const (
	FieldMaxTemp Field = "max_temp_tenths_c"
	FieldMinTemp Field = "min_temp_tenths_c"
	FieldPrecip  Field = "precip_tenths_mm"
)

// Fields lists every reconciled field in merge order.
var Fields = []Field{FieldMaxTemp, FieldMinTemp, FieldPrecip}

// RawIDColumn returns the curated column holding the winning raw ID for f.
func (f Field) RawIDColumn() string {
	switch f {
	case FieldMaxTemp:
		return "max_temp_raw_id"
	case FieldMinTemp:
		return "min_temp_raw_id"
	case FieldPrecip:
		return "precip_raw_id"
	}
	return ""
}

// Valid reports whether f is one of the reconciled fields.
func (f Field) Valid() bool {
	return f.RawIDColumn() != ""
}

// Reading holds the three nullable fixed-point values of one observation.
type Reading struct {
	MaxTempTenthsC *int64 `json:"max_temp_tenths_c"`
	MinTempTenthsC *int64 `json:"min_temp_tenths_c"`
	PrecipTenthsMM *int64 `json:"precip_tenths_mm"`
}

// Value returns the reading for f.
func (r Reading) Value(f Field) *int64 {
	switch f {
	case FieldMaxTemp:
		return r.MaxTempTenthsC
	case FieldMinTemp:
		return r.MinTempTenthsC
	case FieldPrecip:
		return r.PrecipTenthsMM
	}
	return nil
}

// ParsedLine is one successfully parsed weather line, before it is tied to a run.
type ParsedLine struct {
	Date time.Time
	Reading
}

// RawObservation is an immutable, append-only copy of one source line.
type RawObservation struct {
	ID        int64     `json:"id"`
	StationID string    `json:"station_id"`
	Date      time.Time `json:"date"`
	Reading
	SourceFile string    `json:"source_file"`
	SourceLine int       `json:"source_line"`
	IngestedAt time.Time `json:"ingested_at"`
	RunID      int64     `json:"ingestion_run_id"`
}

// CuratedObservation is the single authoritative reading for a (station, date).
// Each winning raw ID is nil until its field has received a non-null value.
type CuratedObservation struct {
	StationID string    `json:"station_id"`
	Date      time.Time `json:"date"`
	Reading
	MaxTempRawID *int64 `json:"max_temp_raw_id"`
	MinTempRawID *int64 `json:"min_temp_raw_id"`
	PrecipRawID  *int64 `json:"precip_raw_id"`
}

// RawID returns the winning raw ID for f.
func (c CuratedObservation) RawID(f Field) *int64 {
	switch f {
	case FieldMaxTemp:
		return c.MaxTempRawID
	case FieldMinTemp:
		return c.MinTempRawID
	case FieldPrecip:
		return c.PrecipRawID
	}
	return nil
}

// Conflict records a raw value that disagreed with the curated value it was
// compared against.
type Conflict struct {
	ID            int64     `json:"id"`
	RunID         int64     `json:"ingestion_run_id"`
	StationID     string    `json:"station_id"`
	Date          time.Time `json:"date"`
	Field         Field     `json:"field"`
	ExistingValue *int64    `json:"existing_value"`
	IncomingValue *int64    `json:"incoming_value"`
	ExistingRawID *int64    `json:"existing_raw_id"`
	IncomingRawID *int64    `json:"incoming_raw_id"`
	SourceFile    string    `json:"source_file"`
	SourceLine    int       `json:"source_line"`
	CreatedAt     time.Time `json:"created_at"`
}

// StationYearStats is the per-station, per-year aggregate derived from the
// curated store. Values are already in whole units.
type StationYearStats struct {
	StationID     string   `json:"station_id"`
	Year          int      `json:"year"`
	AvgMaxTempC   *float64 `json:"avg_max_temp_c"`
	AvgMinTempC   *float64 `json:"avg_min_temp_c"`
	TotalPrecipCM *float64 `json:"total_precip_cm"`
}

// CropYield is one year of national crop yield.
type CropYield struct {
	Year       int   `json:"year"`
	YieldValue int64 `json:"yield_value"`
}

// AnnualSummary joins a year's crop yield with the average of that year's
// station statistics.
type AnnualSummary struct {
	Year             int      `json:"year"`
	YieldValue       int64    `json:"yield_value"`
	AvgMaxTempC      *float64 `json:"avg_max_temp_c"`
	AvgMinTempC      *float64 `json:"avg_min_temp_c"`
	AvgTotalPrecipCM *float64 `json:"avg_total_precip_cm"`
	StationCount     int      `json:"station_count"`
}
