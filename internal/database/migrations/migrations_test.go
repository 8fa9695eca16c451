package migrations

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	for _, table := range []string{"runs", "artifacts", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheck_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Check(db); !errors.Is(err, ErrNoSchema) {
		t.Errorf("Check() error = %v, want ErrNoSchema", err)
	}
}

func TestCheck_Dirty(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_migrations SET dirty = 1"); err != nil {
		t.Fatal(err)
	}

	err := Check(db)
	if err == nil || !strings.Contains(err.Error(), "dirty") {
		t.Errorf("Check() error = %v, want dirty schema error", err)
	}
}

func TestLatest(t *testing.T) {
	got, err := Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Latest() = %d, want 1", got)
	}
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("First Up() failed: %v", err)
	}
	if err := Up(db); err != nil {
		t.Errorf("Second Up() failed: %v (should be idempotent)", err)
	}
	if err := Check(db); err != nil {
		t.Errorf("Check() after double migration returned error: %v", err)
	}
}

func TestSchema_ArtifactRunForeignKey(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO artifacts (id, run_id, name, kind, destination, written_at)
		VALUES ('a-1', 42, 'notes.txt', 'txt', 'pages/Kindle%2Fnotes.md', datetime('now'))
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}

	_, err = db.Exec(`
		INSERT INTO artifacts (id, run_id, name, kind, destination, written_at)
		VALUES ('a-2', NULL, 'notes.txt', 'txt', 'pages/Kindle%2Fnotes.md', datetime('now'))
	`)
	if err != nil {
		t.Errorf("artifact without run rejected: %v", err)
	}
}

func TestSchema_RunDefaults(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	res, err := db.Exec("INSERT INTO runs (operation, started_at) VALUES ('sync push', datetime('now'))")
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
	id, _ := res.LastInsertId()

	var status, params string
	if err := db.QueryRow("SELECT status, parameters FROM runs WHERE id = ?", id).Scan(&status, &params); err != nil {
		t.Fatal(err)
	}
	if status != "running" || params != "" {
		t.Errorf("defaults = (%q, %q), want (running, empty)", status, params)
	}
}

// openTestDB opens a single-connection in-memory SQLite database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	return db
}
