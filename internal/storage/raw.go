package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// RawColumns is the number of bound columns per raw row, used to size batches.
const RawColumns = 9

// InsertRawBatch appends rows to the raw store in one transaction and returns
// the number inserted. IDs are assigned by the database in row order.
func (s *Store) InsertRawBatch(ctx context.Context, rows []domain.RawObservation) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := s.insertRaw(ctx, tx, rows)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) insertRaw(ctx context.Context, tx *sql.Tx, rows []domain.RawObservation) (int64, error) {
	var b strings.Builder
	b.WriteString(`INSERT INTO weather_records_raw
    (station_id, date, max_temp_tenths_c, min_temp_tenths_c, precip_tenths_mm,
     source_file, source_line, ingested_at, ingestion_run_id)
VALUES `)
	args := make([]any, 0, len(rows)*RawColumns)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range RawColumns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.ph(i*RawColumns + c + 1))
		}
		b.WriteByte(')')
		args = append(args,
			r.StationID,
			s.dialect.BindDate(r.Date),
			r.MaxTempTenthsC,
			r.MinTempTenthsC,
			r.PrecipTenthsMM,
			r.SourceFile,
			r.SourceLine,
			s.dialect.BindTime(r.IngestedAt),
			r.RunID,
		)
	}
	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert raw batch of %d: %w", len(rows), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("raw batch rows affected: %w", err)
	}
	return n, nil
}

// ListRawByRun returns the raw rows written by runID in ID order.
func (s *Store) ListRawByRun(ctx context.Context, runID int64) ([]domain.RawObservation, error) {
	q := fmt.Sprintf(`SELECT id, station_id, date, max_temp_tenths_c, min_temp_tenths_c, precip_tenths_mm,
       source_file, source_line, ingested_at, ingestion_run_id
FROM weather_records_raw WHERE ingestion_run_id = %s ORDER BY id`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list raw for run %d: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.RawObservation
	for rows.Next() {
		var (
			r          domain.RawObservation
			date, when nullTime
		)
		if err := rows.Scan(&r.ID, &r.StationID, &date, &r.MaxTempTenthsC, &r.MinTempTenthsC, &r.PrecipTenthsMM,
			&r.SourceFile, &r.SourceLine, &when, &r.RunID); err != nil {
			return nil, fmt.Errorf("scan raw row: %w", err)
		}
		r.Date = date.date()
		r.IngestedAt = when.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRunPairs returns the number of distinct (station, date) pairs that
// runID wrote raw rows for.
func (s *Store) CountRunPairs(ctx context.Context, runID int64) (int64, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM (
    SELECT station_id, date FROM weather_records_raw
    WHERE ingestion_run_id = %s GROUP BY station_id, date
) pairs`, s.ph(1))
	var n int64
	if err := s.db.QueryRowContext(ctx, q, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pairs for run %d: %w", runID, err)
	}
	return n, nil
}

// RawBatchSize caps requested to the largest raw batch one insert can bind.
func (s *Store) RawBatchSize(requested int) int {
	return EffectiveBatchSize(s.dialect, requested, RawColumns)
}
