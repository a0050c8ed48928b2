//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erp/gridsync/internal/domain/grid"
)

func newRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisCommittedStore(t *testing.T) {
	addr := newRedisContainer(t)
	ctx := context.Background()

	store, err := NewRedisCommittedStore(ctx, RedisConfig{Addr: addr}, "test:", time.Minute)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "closing", "year=2024")
	assert.ErrorIs(t, err, grid.ErrCommittedNotFound)

	rec := sampleRecord("closing", "year=2024")
	rec.Master[0].Values["amount"] = 12
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "closing", "year=2024")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Actor)
	assert.True(t, rec.CommittedAt.Equal(got.CommittedAt))
	require.Len(t, got.Master, 1)
	assert.Equal(t, grid.Identity("2024-01"), got.Master[0].ID)
	assert.Equal(t, "closed", got.Master[0].Values["status"])
	assert.Equal(t, float64(12), got.Master[0].Values["amount"])

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ttl, err := client.TTL(ctx, "test:closing:year=2024").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisCommittedStore_Unreachable(t *testing.T) {
	_, err := NewRedisCommittedStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, "", 0)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
