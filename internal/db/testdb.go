package db

import (
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// PostgresTestDSN returns the DSN of a scratch PostgreSQL database, or skips
// the test when NAJDENO_TEST_POSTGRES_DSN is not set.
func PostgresTestDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("NAJDENO_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set NAJDENO_TEST_POSTGRES_DSN to run PostgreSQL integration tests")
	}
	return dsn
}
