// Package storetest opens throwaway local stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/jhousvawls/daily-coach/internal/store"
)

// OpenDB opens a SQLite-backed database in a temporary directory that is
// closed when the test finishes.
func OpenDB(t testing.TB) *store.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// OpenStore returns a quiet Store over a fresh SQLite database.
func OpenStore(t testing.TB) (*store.Store, *store.DB) {
	t.Helper()

	db := OpenDB(t)
	return store.NewQuiet(db), db
}
