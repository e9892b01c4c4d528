package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/memorial-crm/internal/config"
	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/searchindex"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.DocStore.Backend = config.BackendMemory
	cfg.Search.Backend = config.BackendMemory
	cfg.Sync.Collections = []string{"Customers"}
	cfg.Sync.LockKey = "customer-backfill"
	cfg.Sync.LockTTLSeconds = 60
	cfg.Log.Level = "error"
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	a, err := Build(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &docstore.MemoryStore{}, a.Store)
	assert.IsType(t, &searchindex.MemoryIndex{}, a.Index)
	assert.NotNil(t, a.Customers)
	assert.Equal(t, []string{"Customers"}, a.BackfillOptions().Collections)
}

func TestBuild_RedisIndexAndLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Search.Backend = config.BackendRedis
	cfg.Search.RedisURL = "redis://" + mr.Addr()
	cfg.Search.IndexName = "customers"

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &searchindex.RedisIndex{}, a.Index)
	require.NotNil(t, a.Redis)

	_, err = a.Customers.Create(context.Background(), map[string]any{"trackingNo": "R-1", "name": "鈴木"})
	require.NoError(t, err)

	summary, err := a.Backfill.Run(context.Background(), a.BackfillOptions())
	require.NoError(t, err)
	assert.False(t, summary.HasErrors())
	assert.False(t, mr.Exists("lock:customer-backfill"))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Backend = config.BackendRedis
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
