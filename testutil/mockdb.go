package testutil

import (
	"path/filepath"
	"testing"

	"github.com/iksnae/chat-recorder/internal"
)

// CreateInMemoryDB opens a private in-memory SQLite database for testing
func CreateInMemoryDB(t *testing.T) *internal.DB {
	t.Helper()
	db, err := internal.OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateFileDB opens a SQLite database file inside a temp directory
func CreateFileDB(t *testing.T) (*internal.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	db, err := internal.OpenDatabase("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to create database %s: %v", path, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

// InsertRaw executes a statement directly, for seeding rows the public API would reject
func InsertRaw(t *testing.T, db *internal.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(db.Dialect.Rebind(query), args...); err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
}
