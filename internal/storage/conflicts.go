package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// detectFieldSQL records one conflict per raw row of the run whose non-null
// value differs from the non-null curated value for the same pair. It runs
// after the merge, so it compares against post-merge state.
func detectFieldSQL(d Dialect, f domain.Field) string {
	col, rawID := string(f), f.RawIDColumn()
	return fmt.Sprintf(`INSERT INTO weather_conflicts
    (ingestion_run_id, station_id, date, field, existing_value, incoming_value,
     existing_raw_id, incoming_raw_id, source_file, source_line, created_at)
SELECT r.ingestion_run_id, r.station_id, r.date, '%[1]s', c.%[1]s, r.%[1]s,
       c.%[2]s, r.id, r.source_file, r.source_line, %[3]s
FROM weather_records_raw r
JOIN weather_records c ON c.station_id = r.station_id AND c.date = r.date
WHERE r.ingestion_run_id = %[4]s
  AND r.%[1]s IS NOT NULL
  AND c.%[1]s IS NOT NULL
  AND r.%[1]s <> c.%[1]s
ORDER BY r.id`,
		col, rawID, d.TypedPlaceholder(1, "timestamptz"), d.Placeholder(2))
}

// DetectConflicts writes conflict rows for runID stamped with createdAt and
// returns how many were written. All fields are checked in one transaction.
func (s *Store) DetectConflicts(ctx context.Context, runID int64, createdAt time.Time) (int64, error) {
	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, f := range domain.Fields {
			res, err := tx.ExecContext(ctx, detectFieldSQL(s.dialect, f), s.dialect.BindTime(createdAt), runID)
			if err != nil {
				return fmt.Errorf("detect %s conflicts for run %d: %w", f, runID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("conflict rows affected: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ConflictFilter narrows ListConflicts. Zero values are ignored.
type ConflictFilter struct {
	StationID string
	RunID     int64
	Field     domain.Field
}

// ListConflicts pages through conflicts, newest first.
func (s *Store) ListConflicts(ctx context.Context, f ConflictFilter, p Page) ([]domain.Conflict, int64, error) {
	w := newWhere(s.dialect)
	if f.StationID != "" {
		w.add("station_id = %s", f.StationID)
	}
	if f.RunID != 0 {
		w.add("ingestion_run_id = %s", f.RunID)
	}
	if f.Field != "" {
		w.add("field = %s", string(f.Field))
	}

	total, err := s.count(ctx, "weather_conflicts", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT id, ingestion_run_id, station_id, date, field, existing_value, incoming_value,
       existing_raw_id, incoming_raw_id, source_file, source_line, created_at
FROM weather_conflicts%s ORDER BY id DESC%s`, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	out := []domain.Conflict{}
	for rows.Next() {
		var (
			c          domain.Conflict
			field      string
			date, when nullTime
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.StationID, &date, &field, &c.ExistingValue, &c.IncomingValue,
			&c.ExistingRawID, &c.IncomingRawID, &c.SourceFile, &c.SourceLine, &when); err != nil {
			return nil, 0, fmt.Errorf("scan conflict: %w", err)
		}
		c.Field = domain.Field(field)
		c.Date = date.date()
		c.CreatedAt = when.Time
		out = append(out, c)
	}
	return out, total, rows.Err()
}
