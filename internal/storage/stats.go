package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// ComputeStats rebuilds per-station, per-year aggregates from the curated
// store and returns how many (station, year) rows were upserted. Averages skip
// null readings; a year with no non-null reading for a field stores null.
func (s *Store) ComputeStats(ctx context.Context) (int64, error) {
	year := s.dialect.YearExpr("date")
	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM (
    SELECT station_id, %[1]s AS yr FROM weather_records GROUP BY station_id, %[1]s
) agg`, year)
	upsertQ := fmt.Sprintf(`INSERT INTO weather_stats (station_id, year, avg_max_temp_c, avg_min_temp_c, total_precip_cm)
SELECT station_id, %[1]s,
       AVG(max_temp_tenths_c) / 10.0,
       AVG(min_temp_tenths_c) / 10.0,
       SUM(precip_tenths_mm) / 100.0
FROM weather_records
WHERE true
GROUP BY station_id, %[1]s
ON CONFLICT (station_id, year) DO UPDATE SET
    avg_max_temp_c = excluded.avg_max_temp_c,
    avg_min_temp_c = excluded.avg_min_temp_c,
    total_precip_cm = excluded.total_precip_cm`, year)

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQ).Scan(&n); err != nil {
			return fmt.Errorf("count stats groups: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsertQ); err != nil {
			return fmt.Errorf("upsert stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// StatsFilter narrows ListStats. Zero values are ignored.
type StatsFilter struct {
	StationID string
	Year      int
	YearStart int
	YearEnd   int
}

func (f StatsFilter) apply(w *where, col string) {
	if f.Year != 0 {
		w.add(col+" = %s", f.Year)
	}
	if f.YearStart != 0 {
		w.add(col+" >= %s", f.YearStart)
	}
	if f.YearEnd != 0 {
		w.add(col+" <= %s", f.YearEnd)
	}
}

// ListStats pages through station-year aggregates ordered by station then year.
func (s *Store) ListStats(ctx context.Context, f StatsFilter, p Page) ([]domain.StationYearStats, int64, error) {
	w := newWhere(s.dialect)
	if f.StationID != "" {
		w.add("station_id = %s", f.StationID)
	}
	f.apply(w, "year")

	total, err := s.count(ctx, "weather_stats", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT station_id, year, avg_max_temp_c, avg_min_temp_c, total_precip_cm
FROM weather_stats%s ORDER BY station_id, year%s`, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	out := []domain.StationYearStats{}
	for rows.Next() {
		var st domain.StationYearStats
		if err := rows.Scan(&st.StationID, &st.Year, &st.AvgMaxTempC, &st.AvgMinTempC, &st.TotalPrecipCM); err != nil {
			return nil, 0, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, total, rows.Err()
}

// ListAnnualSummary joins each year's crop yield with the mean of that year's
// station aggregates. Years without both yield and stats are omitted.
func (s *Store) ListAnnualSummary(ctx context.Context, f StatsFilter, p Page) ([]domain.AnnualSummary, int64, error) {
	w := newWhere(s.dialect)
	f.apply(w, "y.year")

	base := `FROM crop_yield y
JOIN (
    SELECT year,
           AVG(avg_max_temp_c) AS avg_max_temp_c,
           AVG(avg_min_temp_c) AS avg_min_temp_c,
           AVG(total_precip_cm) AS avg_total_precip_cm,
           COUNT(*) AS station_count
    FROM weather_stats GROUP BY year
) ys ON ys.year = y.year` + w.clause()

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+base, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count annual summary: %w", err)
	}
	q := `SELECT y.year, y.yield_value, ys.avg_max_temp_c, ys.avg_min_temp_c, ys.avg_total_precip_cm, ys.station_count
` + base + ` ORDER BY y.year` + w.paginate(p)
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list annual summary: %w", err)
	}
	defer rows.Close()

	out := []domain.AnnualSummary{}
	for rows.Next() {
		var a domain.AnnualSummary
		if err := rows.Scan(&a.Year, &a.YieldValue, &a.AvgMaxTempC, &a.AvgMinTempC, &a.AvgTotalPrecipCM, &a.StationCount); err != nil {
			return nil, 0, fmt.Errorf("scan annual summary: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
