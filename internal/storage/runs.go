package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// CreateRun inserts an unfinished run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, dataset string, startedAt time.Time) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO ingestion_runs (dataset, started_at) VALUES (%s, %s) RETURNING id`,
		s.ph(1), s.ph(2))
	var id int64
	if err := s.db.QueryRowContext(ctx, q, dataset, s.dialect.BindTime(startedAt)).Scan(&id); err != nil {
		return 0, fmt.Errorf("create %s run: %w", dataset, err)
	}
	return id, nil
}

// AppendEvent records an audit event against runID. Each event commits on its own.
func (s *Store) AppendEvent(ctx context.Context, runID int64, level, message string, at time.Time) error {
	q := fmt.Sprintf(`INSERT INTO ingestion_events (ingestion_run_id, level, message, created_at)
VALUES (%s, %s, %s, %s)`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.ExecContext(ctx, q, runID, level, message, s.dialect.BindTime(at)); err != nil {
		return fmt.Errorf("append event to run %d: %w", runID, err)
	}
	return nil
}

// FinishRun stamps finishedAt and the final counts on runID.
func (s *Store) FinishRun(ctx context.Context, runID int64, counts domain.RunCounts, finishedAt time.Time) error {
	q := fmt.Sprintf(`UPDATE ingestion_runs
SET finished_at = %s, processed_count = %s, inserted_raw_count = %s,
    upserted_curated_count = %s, conflicts_count = %s
WHERE id = %s`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	res, err := s.db.ExecContext(ctx, q, s.dialect.BindTime(finishedAt),
		counts.Processed, counts.RawInserted, counts.CuratedUpserted, counts.Conflicts, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %d: no such run", runID)
	}
	return nil
}

const runColumns = `id, dataset, started_at, finished_at, processed_count, inserted_raw_count,
       upserted_curated_count, conflicts_count`

func scanRun(sc interface{ Scan(...any) error }) (domain.IngestionRun, error) {
	var (
		r                 domain.IngestionRun
		started, finished nullTime
	)
	err := sc.Scan(&r.ID, &r.Dataset, &started, &finished,
		&r.Processed, &r.RawInserted, &r.CuratedUpserted, &r.Conflicts)
	r.StartedAt = started.Time
	r.FinishedAt = finished.ptr()
	return r, err
}

// GetRun loads one run. The bool is false when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID int64) (domain.IngestionRun, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM ingestion_runs WHERE id = %s`, runColumns, s.ph(1))
	r, err := scanRun(s.db.QueryRowContext(ctx, q, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IngestionRun{}, false, nil
	}
	if err != nil {
		return domain.IngestionRun{}, false, fmt.Errorf("get run %d: %w", runID, err)
	}
	return r, true, nil
}

// RunFilter narrows ListRuns. Zero values are ignored.
type RunFilter struct {
	Dataset string
}

// ListRuns pages through runs, newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter, p Page) ([]domain.IngestionRun, int64, error) {
	w := newWhere(s.dialect)
	if f.Dataset != "" {
		w.add("dataset = %s", f.Dataset)
	}
	total, err := s.count(ctx, "ingestion_runs", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT %s FROM ingestion_runs%s ORDER BY id DESC%s`, runColumns, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.IngestionRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// EventFilter narrows ListEvents. Zero values are ignored.
type EventFilter struct {
	RunID int64
	Level string
}

// ListEvents pages through events, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter, p Page) ([]domain.IngestionEvent, int64, error) {
	w := newWhere(s.dialect)
	if f.RunID != 0 {
		w.add("ingestion_run_id = %s", f.RunID)
	}
	if f.Level != "" {
		w.add("level = %s", f.Level)
	}
	total, err := s.count(ctx, "ingestion_events", w)
	if err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT id, ingestion_run_id, level, message, created_at
FROM ingestion_events%s ORDER BY created_at DESC, id DESC%s`, w.clause(), w.paginate(p))
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []domain.IngestionEvent{}
	for rows.Next() {
		var (
			e    domain.IngestionEvent
			when nullTime
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Level, &e.Message, &when); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = when.Time
		out = append(out, e)
	}
	return out, total, rows.Err()
}
