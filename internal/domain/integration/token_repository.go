package integration

import "context"

// TokenRepository persists realm credentials
type TokenRepository interface {
	// FindActiveByRealm returns the active token for the realm or shared.ErrNotFound
	FindActiveByRealm(ctx context.Context, realmID string) (*OAuthToken, error)

	// ReplaceActive deactivates any active token of the realm and stores token
	// as the new active one, atomically
	ReplaceActive(ctx context.Context, token *OAuthToken) error

	// UpdateIfUnchanged writes token only if the stored row still carries
	// priorVersion. It returns false when another writer got there first.
	UpdateIfUnchanged(ctx context.Context, token *OAuthToken, priorVersion int) (bool, error)

	// Deactivate marks every token of the realm inactive
	Deactivate(ctx context.Context, realmID string) error
}

// RealmLocker serializes token refresh for a realm across processes
type RealmLocker interface {
	// Lock blocks until the realm lock is held or ctx is done. The returned
	// function releases the lock.
	Lock(ctx context.Context, realmID string) (unlock func(), err error)
}
