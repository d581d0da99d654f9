package database

import (
	"path/filepath"
	"testing"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "basket.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"app_state", "execution_metrics"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}

	version, dirty, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("SchemaVersion = %d (dirty %v), want 2 clean", version, dirty)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basket.db")
	if err := Migrate(path); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := Migrate(path); err != nil {
		t.Fatalf("second run must be a no-op, got %v", err)
	}

	// Reopening an existing file keeps its rows.
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.SQL.Exec(`INSERT INTO app_state (name, payload) VALUES ('k', 'v')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	var value string
	if err := db.SQL.QueryRow(`SELECT payload FROM app_state WHERE name = 'k'`).Scan(&value); err != nil || value != "v" {
		t.Errorf("row lost on reopen: %q, %v", value, err)
	}
}
