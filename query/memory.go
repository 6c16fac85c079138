package query

import (
	"context"
	"testing"
)

// OpenMemory opens a migrated in-memory store that is closed when t ends.
func OpenMemory(t testing.TB) *Database {
	t.Helper()
	db, err := Open(context.Background(), DriverModernc, ":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
