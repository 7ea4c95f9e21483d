package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"reelshelf/internal/config"
	"reelshelf/internal/services"
)

// Store manages warehouse persistence.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the configured warehouse and creates the schema on first use.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open", "config is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	dialect, ok := DialectFor(cfg.Warehouse.Driver)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open",
			fmt.Sprintf("unsupported driver %q", cfg.Warehouse.Driver), nil)
	}
	return OpenDialect(ctx, dialect, cfg.Warehouse.DSN, cfg.Warehouse.BusyTimeoutMS)
}

// OpenDialect connects to dsn with an explicit dialect.
func OpenDialect(ctx context.Context, dialect Dialect, dsn string, busyTimeoutMS int) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open", "dsn is required", nil)
	}
	db, err := sql.Open(dialect.driverName, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open", "open "+dialect.Name, err)
	}

	if dialect.Name == config.DriverSQLite {
		// One writer connection; temp staging tables live on it too.
		db.SetMaxOpenConns(1)
		if busyTimeoutMS <= 0 {
			busyTimeoutMS = 5000
		}
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open",
					fmt.Sprintf("apply pragma %q", pragma), execErr)
			}
		}
	} else if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "open", "connect "+dialect.Name, err)
	}

	store := &Store{db: db, dialect: dialect}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrConfiguration, "warehouse", "init schema", "", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect reports the engine the store talks to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a unit of work against the warehouse. Every write goes through a Tx.
type Tx struct {
	q       execer
	raw     *sql.Tx
	dialect Dialect
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.q.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.q.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.q.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

// WithTx runs fn inside one transaction, committing when fn returns nil.
// SQLite busy errors re-run the whole unit with a short backoff.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	return retryOnBusy(ctx, func() error {
		raw, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = raw.Rollback() }()

		if err := fn(&Tx{q: raw, raw: raw, dialect: s.dialect}); err != nil {
			return err
		}
		if err := raw.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// View runs fn against an autocommit handle for read-only lookups.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	return retryOnBusy(ctx, func() error { return fn(s.reader()) })
}

// reader returns an autocommit handle for read-only queries.
func (s *Store) reader() *Tx {
	return &Tx{q: s.db, dialect: s.dialect}
}
