package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL       = 30 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
	defaultLockPrefix    = "flocon:realm-lock:"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another process is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRealmLocker implements integration.RealmLocker with SET NX PX.
// The TTL bounds how long a crashed holder blocks other processes.
type RedisRealmLocker struct {
	client        redis.UniversalClient
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// RedisRealmLockerOption is a functional option for configuring the locker
type RedisRealmLockerOption func(*RedisRealmLocker)

// WithLockTTL sets the lock expiry
func WithLockTTL(ttl time.Duration) RedisRealmLockerOption {
	return func(l *RedisRealmLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how often a blocked Lock retries
func WithRetryInterval(d time.Duration) RedisRealmLockerOption {
	return func(l *RedisRealmLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithLockPrefix sets the key prefix
func WithLockPrefix(prefix string) RedisRealmLockerOption {
	return func(l *RedisRealmLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithLockLogger sets the logger
func WithLockLogger(logger *zap.Logger) RedisRealmLockerOption {
	return func(l *RedisRealmLocker) {
		l.logger = logger
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisRealmLocker creates a locker on an existing client
func NewRedisRealmLocker(client redis.UniversalClient, opts ...RedisRealmLockerOption) *RedisRealmLocker {
	l := &RedisRealmLocker{
		client:        client,
		keyPrefix:     defaultLockPrefix,
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ping checks that the lock store is reachable
func (l *RedisRealmLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Lock blocks until the realm lock is acquired or ctx is done
func (l *RedisRealmLocker) Lock(ctx context.Context, realmID string) (func(), error) {
	key := l.keyPrefix + realmID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire realm lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs detached from the caller's context so a cancelled request
// still frees the lock
func (l *RedisRealmLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("Failed to release realm lock",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

var _ integration.RealmLocker = (*RedisRealmLocker)(nil)
