package cache

import (
	"context"
	"sync"

	"github.com/flocon/backend/internal/domain/integration"
)

// InMemoryRealmLocker implements integration.RealmLocker within one process.
// This is suitable for single-instance deployments and testing.
type InMemoryRealmLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewInMemoryRealmLocker creates a new in-memory realm locker
func NewInMemoryRealmLocker() *InMemoryRealmLocker {
	return &InMemoryRealmLocker{slots: make(map[string]chan struct{})}
}

func (l *InMemoryRealmLocker) slot(realmID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[realmID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[realmID] = ch
	}
	return ch
}

// Lock blocks until the realm lock is acquired or ctx is done
func (l *InMemoryRealmLocker) Lock(ctx context.Context, realmID string) (func(), error) {
	ch := l.slot(realmID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ integration.RealmLocker = (*InMemoryRealmLocker)(nil)
