package cache

import (
	"context"
	"fmt"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RealmLockerFactory creates realm lockers based on configuration
type RealmLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RealmLockerFactoryOption is a functional option for configuring the factory
type RealmLockerFactoryOption func(*RealmLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RealmLockerFactoryOption {
	return func(f *RealmLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-process lock
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) RealmLockerFactoryOption {
	return func(f *RealmLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRealmLockerFactory creates a new factory
func NewRealmLockerFactory(cfg config.RedisConfig, opts ...RealmLockerFactoryOption) *RealmLockerFactory {
	f := &RealmLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis locker when Redis is enabled and reachable. The
// returned close function releases the Redis connection.
func (f *RealmLockerFactory) Create(ctx context.Context) (integration.RealmLocker, func() error, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory realm lock")
		return NewInMemoryRealmLocker(), func() error { return nil }, nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis realm lock", zap.String("addr", f.redisConfig.Addr()))
		locker := NewRedisRealmLocker(client,
			WithLockTTL(f.redisConfig.LockTTL),
			WithLockLogger(f.logger),
		)
		return locker, client.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for realm lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory realm lock. "+
		"Concurrent refreshes from other instances are then only guarded by the token version check.",
		zap.Error(err),
	)
	return NewInMemoryRealmLocker(), func() error { return nil }, nil
}
