package storage

import (
	"context"
	"fmt"
	"strings"
)

// Page selects one page of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// where accumulates AND-ed filter clauses with dialect placeholders.
type where struct {
	d       Dialect
	clauses []string
	args    []any
}

func newWhere(d Dialect) *where { return &where{d: d} }

// add appends expr, whose single %s is replaced by the next placeholder.
func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(expr, w.d.Placeholder(len(w.args))))
}

func (w *where) clause() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// paginate appends LIMIT/OFFSET arguments. Call it after the count query has
// used w.args, since it extends them.
func (w *where) paginate(p Page) string {
	w.args = append(w.args, p.Size, p.offset())
	n := len(w.args)
	return fmt.Sprintf(" LIMIT %s OFFSET %s", w.d.Placeholder(n-1), w.d.Placeholder(n))
}

func (s *Store) count(ctx context.Context, table string, w *where) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + table + w.clause()
	if err := s.db.QueryRowContext(ctx, q, w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CountRows returns the row count of table. It is meant for reports and tests,
// and table must be one of the schema's table names.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case "weather_stations", "weather_records", "weather_records_raw", "weather_conflicts",
		"weather_stats", "crop_yield", "ingestion_runs", "ingestion_events":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	return s.count(ctx, table, newWhere(s.dialect))
}
