package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestInitializeDatabase_IsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	db, err := InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	db.Close()

	// Reopening must not re-apply migrations
	db, err = InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to re-initialize database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 applied migrations, got %d", count)
	}

	if _, err := db.Exec("SELECT flagged_for_review, excessive_failed_logins, excessive_request_frequency FROM security_logs LIMIT 1"); err != nil {
		t.Errorf("Expected anomaly columns to exist: %v", err)
	}
}

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql": {Data: []byte("SELECT 2;")},
		"m/001_a.sql": {Data: []byte("SELECT 1;")},
		"m/readme.md": {Data: []byte("ignored")},
	}

	migrations, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("Expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001_a" || migrations[1].Version != "002_b" {
		t.Errorf("Unexpected order: %s, %s", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	if _, err := loadMigrations(fstest.MapFS{}, "m"); err == nil {
		t.Error("Expected error when no migrations exist")
	}
}
