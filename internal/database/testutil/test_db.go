package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	seedData bool
}

// WithSeedData inserts the default super admin role/user and baseline permissions.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.seedData = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database with the schema migrated.
// The connection is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A distinct DSN per test keeps shared-cache memory databases isolated.
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))
	if cfg.seedData {
		require.NoError(t, database.Seed(db, database.SeedOptions{
			AdminUsername: "admin",
			AdminPassword: "admin-password",
		}))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
