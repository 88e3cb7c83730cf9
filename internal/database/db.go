package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // Pure Go sqlite driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Options configures NewDB.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	AcquireTimeout  time.Duration
	RetryMaxElapsed time.Duration
}

// DB provides a centralized database connection pool.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect

	acquireTimeout  time.Duration
	retryMaxElapsed time.Duration
}

// NewDB opens the configured database and runs migrations.
func NewDB(opts Options) (*DB, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	if dialect == SQLite {
		dir := filepath.Dir(strings.TrimPrefix(opts.DSN, "file:"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Run migrations before opening the database connection for the app
	if err := RunMigrations(dialect, opts.DSN); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dsn, err := dialect.openDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	acquire := opts.AcquireTimeout
	if acquire <= 0 {
		acquire = 5 * time.Second
	}
	retry := opts.RetryMaxElapsed
	if retry <= 0 {
		retry = 2 * time.Second
	}

	return &DB{
		SQL:             db,
		Dialect:         dialect,
		acquireTimeout:  acquire,
		retryMaxElapsed: retry,
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// Ping verifies a connection can be obtained.
func (d *DB) Ping(ctx context.Context) error {
	return d.WithConn(ctx, func(q *Querier) error {
		_, err := q.ExecContext(ctx, "SELECT 1")
		return err
	})
}

// Querier returns a Querier running statements on the pool.
func (d *DB) Querier() *Querier {
	return &Querier{db: d.SQL, dialect: d.Dialect}
}

// RunMigrations applies the dialect's embedded migrations using golang-migrate.
func RunMigrations(dialect Dialect, dsn string) error {
	d, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create iofs driver: %w", err)
	}

	databaseURL, err := dialect.migrateURL(dsn)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("closing migrate instance", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Debug("database migrations applied", "dialect", dialect)
	return nil
}
