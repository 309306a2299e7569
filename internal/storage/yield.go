package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

const yieldColumns = 2

// InsertYields inserts rows whose year is not already present and returns how
// many were new. Existing years are left untouched.
func (s *Store) InsertYields(ctx context.Context, rows []domain.CropYield) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	chunk := EffectiveBatchSize(s.dialect, len(rows), yieldColumns)
	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(rows); start += chunk {
			end := min(start+chunk, len(rows))
			n, err := s.insertYieldChunk(ctx, tx, rows[start:end])
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) insertYieldChunk(ctx context.Context, tx *sql.Tx, rows []domain.CropYield) (int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO crop_yield (year, yield_value) VALUES ")
	args := make([]any, 0, len(rows)*yieldColumns)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(%s, %s)", s.ph(2*i+1), s.ph(2*i+2))
		args = append(args, r.Year, r.YieldValue)
	}
	b.WriteString(" ON CONFLICT (year) DO NOTHING")
	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert yield rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("yield rows affected: %w", err)
	}
	return n, nil
}

// ListYield pages through crop yield rows ordered by year.
func (s *Store) ListYield(ctx context.Context, f StatsFilter, p Page) ([]domain.CropYield, int64, error) {
	w := newWhere(s.dialect)
	f.apply(w, "year")
	total, err := s.count(ctx, "crop_yield", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT year, yield_value FROM crop_yield%s ORDER BY year%s`, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list yield: %w", err)
	}
	defer rows.Close()

	out := []domain.CropYield{}
	for rows.Next() {
		var y domain.CropYield
		if err := rows.Scan(&y.Year, &y.YieldValue); err != nil {
			return nil, 0, fmt.Errorf("scan yield: %w", err)
		}
		out = append(out, y)
	}
	return out, total, rows.Err()
}
