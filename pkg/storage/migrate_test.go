package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestRunMigrationsAppliesOnce(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrations := []Migration{
		{Version: 1, Description: "create things", SQL: `CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT)`},
		{Version: 2, Description: "add column", SQL: `ALTER TABLE things ADD COLUMN kind TEXT`},
	}

	if err := RunMigrations(ctx, db, "test", migrations); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	// Re-running must be a no-op, not a failure
	if err := RunMigrations(ctx, db, "test", migrations); err != nil {
		t.Fatalf("RunMigrations second pass failed: %v", err)
	}

	var applied int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE component = 'test'`).Scan(&applied); err != nil {
		t.Fatalf("failed to count applied migrations: %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 applied migrations, got %d", applied)
	}

	if _, err := db.Exec(`INSERT INTO things (name, kind) VALUES ('a', 'b')`); err != nil {
		t.Errorf("expected migrated schema to be usable: %v", err)
	}
}

func TestRunMigrationsIndependentComponents(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	first := []Migration{{Version: 1, Description: "a", SQL: `CREATE TABLE a (id INTEGER PRIMARY KEY)`}}
	second := []Migration{{Version: 1, Description: "b", SQL: `CREATE TABLE b (id INTEGER PRIMARY KEY)`}}

	if err := RunMigrations(ctx, db, "alpha", first); err != nil {
		t.Fatalf("alpha migrations failed: %v", err)
	}
	if err := RunMigrations(ctx, db, "beta", second); err != nil {
		t.Fatalf("beta migrations failed: %v", err)
	}
}
