package cache

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/infrastructure/config"
)

// ClosableCommittedStore is a committed store that owns resources
type ClosableCommittedStore interface {
	grid.CommittedStore
	io.Closer
}

// CommittedStoreFactory builds the committed store named by configuration
type CommittedStoreFactory struct {
	store                 config.StoreConfig
	redis                 config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// CommittedStoreFactoryOption configures the factory
type CommittedStoreFactoryOption func(*CommittedStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CommittedStoreFactoryOption {
	return func(f *CommittedStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) CommittedStoreFactoryOption {
	return func(f *CommittedStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCommittedStoreFactory creates a new factory
func NewCommittedStoreFactory(store config.StoreConfig, redisCfg config.RedisConfig, opts ...CommittedStoreFactoryOption) *CommittedStoreFactory {
	f := &CommittedStoreFactory{
		store:                 store,
		redis:                 redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the configured store. With the redis backend selected and
// Redis unreachable it falls back to memory, unless fallback is disabled.
func (f *CommittedStoreFactory) Create(ctx context.Context) (ClosableCommittedStore, error) {
	if f.store.Backend != config.StoreRedis {
		f.logger.Info("using in-memory committed store")
		return NewInMemoryCommittedStore(f.store.TTL), nil
	}

	store, err := NewRedisCommittedStore(ctx, RedisConfig{
		Addr:     f.redis.Addr(),
		Password: f.redis.Password,
		DB:       f.redis.DB,
	}, f.store.KeyPrefix, f.store.TTL)
	if err == nil {
		f.logger.Info("using Redis committed store", zap.String("addr", f.redis.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for committed store but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory committed store. "+
		"Committed records will not be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryCommittedStore(f.store.TTL), nil
}
