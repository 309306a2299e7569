package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// mergeFieldSQL builds the per-field upsert that folds one run's raw rows into
// the curated store. The inner query reduces the run to one candidate per
// (station, date): the highest raw ID carrying a non-null value. The ON CONFLICT
// arm replaces the curated value only when the candidate is non-null and either
// the curated value is null or the candidate ID is strictly greater. Pairs with
// no non-null candidate still get a curated row so the run's pair count is the
// number of curated rows touched.
func mergeFieldSQL(d Dialect, f domain.Field) string {
	col, rawID := string(f), f.RawIDColumn()
	cond := fmt.Sprintf(
		"excluded.%[1]s IS NOT NULL AND (weather_records.%[1]s IS NULL OR excluded.%[2]s > COALESCE(weather_records.%[2]s, 0))",
		col, rawID)
	return fmt.Sprintf(`INSERT INTO weather_records (station_id, date, %[1]s, %[2]s)
SELECT g.station_id, g.date, r.%[1]s, g.win_id
FROM (
    SELECT station_id, date, MAX(CASE WHEN %[1]s IS NOT NULL THEN id END) AS win_id
    FROM weather_records_raw
    WHERE ingestion_run_id = %[3]s
    GROUP BY station_id, date
) g
LEFT JOIN weather_records_raw r ON r.id = g.win_id
WHERE true
ON CONFLICT (station_id, date) DO UPDATE SET
    %[1]s = CASE WHEN %[4]s THEN excluded.%[1]s ELSE weather_records.%[1]s END,
    %[2]s = CASE WHEN %[4]s THEN excluded.%[2]s ELSE weather_records.%[2]s END`,
		col, rawID, d.Placeholder(1), cond)
}

// MergeRun applies the highest-raw-ID-wins rule for every field of runID's raw
// rows. All fields are merged in a single transaction.
func (s *Store) MergeRun(ctx context.Context, runID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, f := range domain.Fields {
			if _, err := tx.ExecContext(ctx, mergeFieldSQL(s.dialect, f), runID); err != nil {
				return fmt.Errorf("merge %s for run %d: %w", f, runID, err)
			}
		}
		return nil
	})
}

const curatedColumns = `station_id, date, max_temp_tenths_c, min_temp_tenths_c, precip_tenths_mm,
       max_temp_raw_id, min_temp_raw_id, precip_raw_id`

func scanCurated(sc interface{ Scan(...any) error }) (domain.CuratedObservation, error) {
	var (
		c    domain.CuratedObservation
		date nullTime
	)
	err := sc.Scan(&c.StationID, &date, &c.MaxTempTenthsC, &c.MinTempTenthsC, &c.PrecipTenthsMM,
		&c.MaxTempRawID, &c.MinTempRawID, &c.PrecipRawID)
	c.Date = date.date()
	return c, err
}

// GetCurated returns the curated row for (stationID, date). The bool is false
// when no row exists.
func (s *Store) GetCurated(ctx context.Context, stationID string, date time.Time) (domain.CuratedObservation, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM weather_records WHERE station_id = %s AND date = %s`,
		curatedColumns, s.ph(1), s.ph(2))
	c, err := scanCurated(s.db.QueryRowContext(ctx, q, stationID, s.dialect.BindDate(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CuratedObservation{}, false, nil
	}
	if err != nil {
		return domain.CuratedObservation{}, false, fmt.Errorf("get curated %s %s: %w", stationID, date.Format(time.DateOnly), err)
	}
	return c, true, nil
}

// CuratedFilter narrows ListCurated. Zero values are ignored.
type CuratedFilter struct {
	StationID string
	Date      *time.Time
	Start     *time.Time
	End       *time.Time
}

// ListCurated pages through curated rows ordered by station then date.
func (s *Store) ListCurated(ctx context.Context, f CuratedFilter, p Page) ([]domain.CuratedObservation, int64, error) {
	w := newWhere(s.dialect)
	if f.StationID != "" {
		w.add("station_id = %s", f.StationID)
	}
	if f.Date != nil {
		w.add("date = %s", s.dialect.BindDate(*f.Date))
	}
	if f.Start != nil {
		w.add("date >= %s", s.dialect.BindDate(*f.Start))
	}
	if f.End != nil {
		w.add("date <= %s", s.dialect.BindDate(*f.End))
	}

	total, err := s.count(ctx, "weather_records", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT %s FROM weather_records%s ORDER BY station_id, date%s`,
		curatedColumns, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list curated: %w", err)
	}
	defer rows.Close()

	out := []domain.CuratedObservation{}
	for rows.Next() {
		c, err := scanCurated(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan curated: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
