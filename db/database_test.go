package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpenAppliesMigrations(t *testing.T) {
	database := openTestDB(t)

	var name string
	err := database.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='image_history'").Scan(&name)
	if err != nil {
		t.Fatalf("image_history table missing: %v", err)
	}

	var mode string
	if err := database.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q (%v), want wal", mode, err)
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer second.Close()

	conn, err := NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := MigrationVersion(conn)
	if err != nil {
		t.Fatalf("MigrationVersion() failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("MigrationVersion() = %d, %v; want 1, false", version, dirty)
	}
}

func TestDatabaseClose(t *testing.T) {
	database := openTestDB(t)
	if err := database.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := database.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close() succeeded")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") succeeded")
	}
}
