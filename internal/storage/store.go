// Package storage persists stations, observations, runs and aggregates in
// SQLite or PostgreSQL through database/sql.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Store is the SQL-backed persistence layer shared by every pipeline stage.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to rawURL, waits for the database to answer pings for up to
// connectTimeout, and applies the schema.
func Open(ctx context.Context, rawURL string, connectTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	dialect, dsn, err := dialectForURL(rawURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}
	if dialect.Name() == "sqlite" {
		// One connection keeps writes serialised and pragmas applied.
		db.SetMaxOpenConns(1)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectTimeout
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if pingErr := db.PingContext(ctx); pingErr != nil {
			logger.Warn("database not ready", "dialect", dialect.Name(), "attempt", attempt, "error", pingErr)
			return pingErr
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", "dialect", dialect.Name())
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Dialect returns the engine dialect chosen at Open.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping reports whether the database is reachable. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// AcquireRunLock takes the dataset-scoped run lock. It fails fast with
// domain.ErrRunInProgress when another process owns it.
func (s *Store) AcquireRunLock(ctx context.Context, dataset string) (func(), error) {
	return s.dialect.AcquireRunLock(ctx, s.db, dataset)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) ph(n int) string { return s.dialect.Placeholder(n) }

// CheckReadiness satisfies the readiness probe by pinging the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
