package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect identifies the relational engine behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(name)) {
	case SQLite:
		return SQLite, nil
	case Postgres:
		return Postgres, nil
	case MySQL:
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SupportsReturning reports whether INSERT ... RETURNING is used for generated ids.
// Postgres has no LastInsertId through pgx, so it must use RETURNING.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

func (d Dialect) driverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

func (d Dialect) isolation() sql.IsolationLevel {
	if d == MySQL {
		// Gap locks taken by the scope lock only exist under REPEATABLE READ.
		return sql.LevelRepeatableRead
	}
	return sql.LevelReadCommitted
}

// openDSN adapts the configured DSN to what the application pool needs.
func (d Dialect) openDSN(dsn string) (string, error) {
	switch d {
	case SQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", nil
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		// Affected-row counts must include rows matched but left unchanged so a
		// no-op move is not mistaken for a missing item.
		cfg.ClientFoundRows = true
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	default:
		return dsn, nil
	}
}

// migrateURL builds the golang-migrate database URL for the DSN.
func (d Dialect) migrateURL(dsn string) (string, error) {
	switch d {
	case SQLite:
		return "sqlite://" + strings.TrimPrefix(dsn, "file:"), nil
	case Postgres:
		idx := strings.Index(dsn, "://")
		if idx < 0 {
			return "", fmt.Errorf("postgres dsn must be a URL (postgres://...)")
		}
		return "pgx5" + dsn[idx:], nil
	case MySQL:
		return "mysql://" + dsn, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", d)
}
