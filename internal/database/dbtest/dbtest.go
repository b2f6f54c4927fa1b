// Package dbtest opens migrated databases for tests.
package dbtest

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/account-server-go/internal/database"
)

// New returns a fresh in-memory SQLite database with all migrations applied.
// It is closed when the test finishes.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Connect("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// Postgres returns a migrated database on the server named by
// TEST_DATABASE_URL, isolated in a schema of its own that is dropped when the
// test finishes. The test is skipped when the variable is unset.
func Postgres(t testing.TB) *database.DB {
	t.Helper()

	baseURL := os.Getenv("TEST_DATABASE_URL")
	if baseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := database.Connect(baseURL)
	require.NoError(t, err)
	require.Equal(t, database.DialectPostgres, admin.Dialect, "TEST_DATABASE_URL must point at PostgreSQL")

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close()
	})

	// lib/pq sends unknown URL parameters as run-time settings, so every
	// pooled connection starts in the test schema.
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := database.Connect(u.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}
