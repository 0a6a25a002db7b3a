// Package repotest opens migrated sqlite databases for tests.
package repotest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
)

// Open returns a migrated database in a per-test temp file. It is closed
// when the test finishes.
func Open(t testing.TB) *repository.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "takeoff.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := repository.OpenSQLite(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}
