package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// Dialect captures the per-engine differences the pipeline depends on. It is
// chosen once when the store is opened.
type Dialect interface {
	Name() string
	DriverName() string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// TypedPlaceholder is Placeholder with an explicit SQL type, for arguments
	// the engine cannot infer, such as literals in an INSERT ... SELECT list.
	TypedPlaceholder(n int, sqlType string) string
	// MaxBindParams is the largest number of bound parameters one statement may carry.
	MaxBindParams() int

	// YearExpr extracts the calendar year of a DATE column as an integer.
	YearExpr(col string) string

	// BindTime and BindDate convert values into the representation the engine
	// stores for TIMESTAMP and DATE columns.
	BindTime(t time.Time) any
	BindDate(t time.Time) any

	Schema() []string

	// AcquireRunLock serialises runs of one dataset across processes. The
	// returned release func must be called when the run ends.
	AcquireRunLock(ctx context.Context, db *sql.DB, dataset string) (release func(), err error)
}

// EffectiveBatchSize caps requested so that one multi-row insert of
// colsPerRow columns stays within the engine's parameter limit.
func EffectiveBatchSize(d Dialect, requested, colsPerRow int) int {
	if requested <= 0 {
		requested = 1
	}
	if colsPerRow <= 0 {
		return requested
	}
	maxRows := d.MaxBindParams() / colsPerRow
	if maxRows < 1 {
		maxRows = 1
	}
	return min(requested, maxRows)
}

// dialectForURL selects the dialect and driver DSN for a DATABASE_URL.
func dialectForURL(rawURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(rawURL, "sqlite://"):
		path := strings.TrimPrefix(rawURL, "sqlite://")
		// sqlite:///relative.db and sqlite:////abs/path.db, as SQLAlchemy spells them.
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return nil, "", fmt.Errorf("sqlite url %q has no path", rawURL)
		}
		return sqliteDialect{}, sqliteDSN(path), nil
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return postgresDialect{}, rawURL, nil
	}
	return nil, "", fmt.Errorf("unsupported database url %q", rawURL)
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string              { return "?" }
func (sqliteDialect) TypedPlaceholder(int, string) string { return "?" }

// MaxBindParams uses the historical SQLITE_MAX_VARIABLE_NUMBER so databases
// built by older sqlite3 binaries stay writable.
func (sqliteDialect) MaxBindParams() int { return 999 }

func (sqliteDialect) YearExpr(col string) string {
	return fmt.Sprintf("CAST(strftime('%%Y', %s) AS INTEGER)", col)
}

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (sqliteDialect) BindTime(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) }
func (sqliteDialect) BindDate(t time.Time) any { return t.Format(time.DateOnly) }

func (sqliteDialect) Schema() []string { return sqliteSchema }

// AcquireRunLock is a no-op: SQLite already admits a single writer per file.
func (sqliteDialect) AcquireRunLock(context.Context, *sql.DB, string) (func(), error) {
	return func() {}, nil
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) TypedPlaceholder(n int, sqlType string) string {
	return fmt.Sprintf("CAST($%d AS %s)", n, sqlType)
}

func (postgresDialect) MaxBindParams() int { return 65535 }

func (postgresDialect) YearExpr(col string) string {
	return fmt.Sprintf("CAST(EXTRACT(YEAR FROM %s) AS INTEGER)", col)
}

func (postgresDialect) BindTime(t time.Time) any { return t.UTC() }
func (postgresDialect) BindDate(t time.Time) any { return t.Format(time.DateOnly) }

func (postgresDialect) Schema() []string { return postgresSchema }

func (postgresDialect) AcquireRunLock(ctx context.Context, db *sql.DB, dataset string) (func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", dataset).Scan(&locked); err != nil {
		conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return nil, domain.ErrRunInProgress
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", dataset)
		conn.Close()
	}, nil
}
