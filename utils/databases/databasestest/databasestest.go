package databasestest

import (
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"path/filepath"
	"testing"
)

// New opens a migrated database in a temporary directory,
// closed when the test ends.
func New(t testing.TB) databases.SqlConnection {
	t.Helper()

	db := databases.New(filepath.Join(t.TempDir(), "test.db"))
	if err := db.Run(); err != nil {
		t.Fatalf("cannot open test database: %v", err)
	}
	if err := db.Migrate(&entities.Coin{}, &entities.HistoricalPrice{}, &entities.Task{}); err != nil {
		t.Fatalf("cannot migrate test database: %v", err)
	}
	t.Cleanup(db.Shutdown)

	return db
}
