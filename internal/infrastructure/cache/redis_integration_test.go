//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
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

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRealmLocker_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisRealmLocker(client, WithLockTTL(time.Second), WithRetryInterval(5*time.Millisecond))
	require.NoError(t, locker.Ping(ctx))

	t.Run("second holder waits for release", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "9130")
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			unlock2, err := locker.Lock(ctx, "9130")
			if assert.NoError(t, err) {
				close(acquired)
				unlock2()
			}
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired while held")
		case <-time.After(50 * time.Millisecond):
		}
		unlock()

		select {
		case <-acquired:
		case <-time.After(2 * time.Second):
			t.Fatal("lock not acquired after release")
		}
	})

	t.Run("expired lock is not released by its former holder", func(t *testing.T) {
		short := NewRedisRealmLocker(client, WithLockTTL(20*time.Millisecond))
		unlockStale, err := short.Lock(ctx, "4620")
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)

		unlock, err := locker.Lock(ctx, "4620")
		require.NoError(t, err)
		defer unlock()

		unlockStale()
		exists, err := client.Exists(ctx, defaultLockPrefix+"4620").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})

	t.Run("honors context", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "busy")
		require.NoError(t, err)
		defer unlock()

		timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(timeoutCtx, "busy")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRedisIdempotencyStore_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	store := IdempotencyStoreFor(NewRedisRealmLocker(client))
	_, ok := store.(*RedisIdempotencyStore)
	require.True(t, ok)

	claimed, err := store.Claim(ctx, "POST /api/v1/sync/projects abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "POST /api/v1/sync/projects abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	ttl, err := client.TTL(ctx, defaultIdempotencyPrefix+"POST /api/v1/sync/projects abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Release(ctx, "POST /api/v1/sync/projects abc"))
	claimed, err = store.Claim(ctx, "POST /api/v1/sync/projects abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, store.Close())
	require.NoError(t, client.Ping(ctx).Err(), "store must not close the shared client")
}
