package testutil

import (
	"path/filepath"
	"testing"

	"drive-go/internal/database"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	s := database.NewSQLiteStoreFromDB(sqlDB)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// NewTestFileStore creates a migrated SQLite store in a temp directory. Unlike
// NewTestStore it has a real connection pool, so concurrent transactions
// contend for the database lock the way they do in production.
func NewTestFileStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	s, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), database.DatabaseFileName))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	if err := s.Migrate(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return s
}
