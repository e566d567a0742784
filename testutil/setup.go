package testutil

import (
	"testing"

	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/model"
	"github.com/stretchr/testify/require"
)

// SetupTestDB opens an in-memory sqlite gateway (single-writer mode), runs
// AutoMigrate and seeds the two fixed teams. Requires no external services.
func SetupTestDB(t *testing.T) *dbadapter.Gateway {
	t.Helper()
	gw, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: "file::memory:",
	})
	require.NoError(t, err, "SetupTestDB: Open")
	t.Cleanup(func() { _ = gw.Close() })
	require.NoError(t, model.AutoMigrate(gw.DB()), "SetupTestDB: AutoMigrate")
	require.NoError(t, model.SeedTeams(gw.DB()), "SetupTestDB: SeedTeams")
	return gw
}

// SetupTestCache creates an in-process LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: NewCache")
	return c
}
