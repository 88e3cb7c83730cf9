package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"weekly-planner/internal/shared"
)

// ErrUnavailable indicates no connection could be obtained from the pool.
var ErrUnavailable = errors.New("database connection unavailable")

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier runs statements written with '?' placeholders against a pool,
// connection or transaction, rebinding them for the dialect.
type Querier struct {
	db      DBTX
	dialect Dialect
}

// Dialect returns the engine the statements run against.
func (q *Querier) Dialect() Dialect { return q.dialect }

func (q *Querier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Querier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Querier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

// WithConn runs fn on a dedicated connection without a transaction. The
// connection is returned to the pool on every exit path.
func (d *DB) WithConn(ctx context.Context, fn func(q *Querier) error) error {
	conn, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return fn(&Querier{db: conn, dialect: d.Dialect})
}

// WithTx executes fn within a database transaction on a dedicated connection.
// If fn returns an error the transaction is rolled back; otherwise it is
// committed. Serialization conflicts and busy errors retry the whole
// transaction with exponential backoff, so fn must not have side effects
// outside the transaction.
func (d *DB) WithTx(ctx context.Context, fn func(q *Querier) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := d.runTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("retrying transaction", "attempt", attempt, "error", err)
		return err
	}
	return backoff.Retry(op, backoff.WithContext(d.newRetryBackoff(), ctx))
}

func (d *DB) newRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = d.retryMaxElapsed
	return bo
}

func (d *DB) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()

	conn, err := d.SQL.Conn(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

func (d *DB) runTxOnce(ctx context.Context, fn func(q *Querier) error) error {
	conn, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if d.Dialect == SQLite {
		return runImmediate(ctx, conn, fn)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: d.Dialect.isolation()})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Querier{db: tx, dialect: d.Dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// runImmediate starts an IMMEDIATE transaction so the write lock is taken before
// any read. database/sql's BeginTx always uses DEFERRED mode with modernc.org/sqlite,
// which would let two writers read the same bucket state.
func runImmediate(ctx context.Context, conn *sql.Conn, fn func(q *Querier) error) error {
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Use context.Background() for ROLLBACK so cleanup happens even if ctx is canceled
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&Querier{db: conn, dialect: SQLite}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// IsRetryable reports whether err is a transient conflict worth retrying the
// transaction for.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := shared.As(err); ok {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueConstraintError checks if an error is a UNIQUE constraint violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Classify translates a store error into the shared taxonomy. Errors that already
// carry a Kind pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := shared.As(err); ok {
		return err
	}
	if errors.Is(err, ErrUnavailable) {
		return shared.Unavailable(err)
	}
	return shared.Store(err)
}
