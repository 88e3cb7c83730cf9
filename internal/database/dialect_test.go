package database

import (
	"database/sql"
	"strings"
	"testing"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		dialect Dialect
		dsn     string
		want    string
	}{
		{SQLite, "data/planner.db", "sqlite://data/planner.db"},
		{SQLite, "file:/tmp/planner.db", "sqlite:///tmp/planner.db"},
		{Postgres, "postgres://app@db:5432/planner?sslmode=disable", "pgx5://app@db:5432/planner?sslmode=disable"},
		{MySQL, "app:pw@tcp(db:3306)/planner", "mysql://app:pw@tcp(db:3306)/planner"},
	}
	for _, tt := range tests {
		got, err := tt.dialect.migrateURL(tt.dsn)
		if err != nil {
			t.Fatalf("migrateURL(%s, %q) failed: %v", tt.dialect, tt.dsn, err)
		}
		if got != tt.want {
			t.Errorf("migrateURL(%s, %q) = %q, want %q", tt.dialect, tt.dsn, got, tt.want)
		}
	}

	if _, err := Postgres.migrateURL("host=db user=app"); err == nil {
		t.Error("Expected an error for key/value postgres dsn, got nil")
	}
}

func TestOpenDSN(t *testing.T) {
	got, err := SQLite.openDSN("data/planner.db")
	if err != nil {
		t.Fatalf("openDSN failed: %v", err)
	}
	if !strings.HasPrefix(got, "data/planner.db?_pragma=busy_timeout(5000)") {
		t.Errorf("Unexpected sqlite dsn %q", got)
	}

	got, err = MySQL.openDSN("app:pw@tcp(db:3306)/planner")
	if err != nil {
		t.Fatalf("openDSN failed: %v", err)
	}
	if !strings.Contains(got, "clientFoundRows=true") {
		t.Errorf("Expected clientFoundRows in mysql dsn, got %q", got)
	}
}

func TestIsolation(t *testing.T) {
	if MySQL.isolation() != sql.LevelRepeatableRead {
		t.Errorf("Expected repeatable read for mysql")
	}
	if Postgres.isolation() != sql.LevelReadCommitted {
		t.Errorf("Expected read committed for postgres")
	}
}
