package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "flocon:idempotency:"

// RedisIdempotencyStore implements shared.IdempotencyStore with SET NX so
// every instance behind the load balancer sees the same claimed keys
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing client. The client
// stays owned by the caller.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim sets the key with a TTL only if it does not exist yet
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release deletes the key
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

// IdempotencyStoreFor returns a store sharing the locker's Redis connection,
// or an in-process store when the locker is in-process
func IdempotencyStoreFor(locker integration.RealmLocker) shared.IdempotencyStore {
	if rl, ok := locker.(*RedisRealmLocker); ok {
		return NewRedisIdempotencyStore(rl.client, "")
	}
	return NewInMemoryIdempotencyStore()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
