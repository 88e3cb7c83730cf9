// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"weekly-planner/internal/database"
)

// New returns a migrated SQLite database living in the test's temp directory.
// It is closed when the test finishes.
func New(t testing.TB) *database.DB {
	t.Helper()
	return Open(t, database.Options{MaxOpenConns: 8})
}

// Open is New with caller supplied pool settings. Driver and DSN are always
// the test's SQLite file.
func Open(t testing.TB, opts database.Options) *database.DB {
	t.Helper()

	opts.Driver = "sqlite"
	opts.DSN = filepath.Join(t.TempDir(), "planner.db")
	db, err := database.NewDB(opts)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
