package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/gridsync/internal/infrastructure/config"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestCommittedStoreFactory_Memory(t *testing.T) {
	f := NewCommittedStoreFactory(config.StoreConfig{Backend: config.StoreMemory, TTL: time.Hour}, unreachableRedis)

	store, err := f.Create(context.Background())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*InMemoryCommittedStore)
	assert.True(t, ok)
}

func TestCommittedStoreFactory_RedisFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := NewCommittedStoreFactory(
		config.StoreConfig{Backend: config.StoreRedis},
		unreachableRedis,
		WithLogger(zap.New(core)),
	)

	store, err := f.Create(context.Background())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*InMemoryCommittedStore)
	assert.True(t, ok)
	assert.Equal(t, 1, logs.FilterMessageSnippet("falling back").Len())
}

func TestCommittedStoreFactory_RedisRequired(t *testing.T) {
	f := NewCommittedStoreFactory(
		config.StoreConfig{Backend: config.StoreRedis},
		unreachableRedis,
		WithInMemoryFallback(false),
	)

	store, err := f.Create(context.Background())
	assert.Nil(t, store)
	assert.ErrorContains(t, err, "Redis required")
}
