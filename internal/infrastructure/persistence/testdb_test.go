package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erp/gridsync/internal/infrastructure/config"
)

// newSQLiteDB opens a migrated in-memory database closed on cleanup
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}
