package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Token refresh results recorded as metrics
const (
	RefreshResultRefreshed = "refreshed"
	RefreshResultReused    = "reused"
	RefreshResultExpired   = "reauthorization_required"
	RefreshResultFailed    = "failed"
)

// TokenManagerConfig configures the TokenManager
type TokenManagerConfig struct {
	// RefreshWindow is how long before access expiry a refresh happens
	RefreshWindow time.Duration
	// DefaultScopes are requested when AuthorizeURL gets none
	DefaultScopes []string
}

// ConnectionStatus describes the authorization of a realm
type ConnectionStatus struct {
	RealmID          string                 `json:"realm_id"`
	Connected        bool                   `json:"connected"`
	State            integration.TokenState `json:"state"`
	AccessExpiresAt  *time.Time             `json:"access_expires_at,omitempty"`
	RefreshExpiresAt *time.Time             `json:"refresh_expires_at,omitempty"`
	LastRefreshedAt  *time.Time             `json:"last_refreshed_at,omitempty"`
	Scopes           []string               `json:"scopes"`
}

// TokenManager keeps a usable access token per realm. Refresh is a critical
// section per realm: an in-process semaphore, an optional distributed lock,
// and a version-checked write make sure one refresh happens per expiry.
type TokenManager struct {
	repo     integration.TokenRepository
	provider OAuthProvider
	signer   StateSigner
	locker   integration.RealmLocker
	metrics  MetricsRecorder
	logger   *zap.Logger
	config   TokenManagerConfig
	now      func() time.Time

	mu         sync.Mutex
	realmLocks map[string]chan struct{}
}

// NewTokenManager creates a TokenManager. locker may be nil for single
// instance deployments.
func NewTokenManager(
	repo integration.TokenRepository,
	provider OAuthProvider,
	signer StateSigner,
	locker integration.RealmLocker,
	metrics MetricsRecorder,
	logger *zap.Logger,
	config TokenManagerConfig,
) *TokenManager {
	if config.RefreshWindow <= 0 {
		config.RefreshWindow = integration.DefaultRefreshWindow
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		repo:       repo,
		provider:   provider,
		signer:     signer,
		locker:     locker,
		metrics:    metrics,
		logger:     logger,
		config:     config,
		now:        time.Now,
		realmLocks: make(map[string]chan struct{}),
	}
}

// WithClock replaces the time source; used by tests
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// GetValidAccessToken returns an access token that is valid for at least the
// refresh window, refreshing the stored pair first when needed
func (m *TokenManager) GetValidAccessToken(ctx context.Context, realmID string) (string, error) {
	token, err := m.loadActive(ctx, realmID)
	if err != nil {
		return "", err
	}

	switch token.State(m.now(), m.config.RefreshWindow) {
	case integration.TokenStateValid:
		return token.AccessToken, nil
	case integration.TokenStateRefreshExpired:
		return "", m.expire(ctx, realmID)
	}

	refreshed, err := m.refresh(ctx, realmID, func(current *integration.OAuthToken) bool {
		return current.NeedsRefresh(m.now(), m.config.RefreshWindow)
	})
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// RefreshAfterRejection refreshes because the remote rejected rejectedAccess.
// If a concurrent caller already replaced that access token, its token is
// returned and no second refresh is issued.
func (m *TokenManager) RefreshAfterRejection(ctx context.Context, realmID, rejectedAccess string) (string, error) {
	refreshed, err := m.refresh(ctx, realmID, func(current *integration.OAuthToken) bool {
		return current.AccessToken == rejectedAccess
	})
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh unconditionally exchanges the refresh token for a new pair
func (m *TokenManager) Refresh(ctx context.Context, realmID string) (*integration.OAuthToken, error) {
	return m.refresh(ctx, realmID, func(*integration.OAuthToken) bool { return true })
}

// refresh runs the critical section. needed is evaluated on the row re-read
// under the lock; when it returns false another caller already refreshed.
func (m *TokenManager) refresh(ctx context.Context, realmID string, needed func(*integration.OAuthToken) bool) (*integration.OAuthToken, error) {
	release, err := m.acquire(ctx, realmID)
	if err != nil {
		return nil, err
	}
	defer release()

	token, err := m.loadActive(ctx, realmID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if token.RefreshExpired(now) {
		return nil, m.expire(ctx, realmID)
	}
	if !needed(token) {
		m.metrics.RecordTokenRefresh(ctx, RefreshResultReused)
		return token, nil
	}

	grant, err := m.provider.Refresh(ctx, token.RefreshToken)
	if err != nil {
		if errors.Is(err, integration.ErrReauthorizationRequired) {
			return nil, m.expire(ctx, realmID)
		}
		m.metrics.RecordTokenRefresh(ctx, RefreshResultFailed)
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	priorVersion := token.Version
	token.ApplyRefresh(*grant, m.now())
	updated, err := m.repo.UpdateIfUnchanged(ctx, token, priorVersion)
	if err != nil {
		m.metrics.RecordTokenRefresh(ctx, RefreshResultFailed)
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	if !updated {
		// Another instance refreshed between our read and write; its pair wins.
		m.logger.Warn("Token refresh lost the race, using stored token", zap.String("realm_id", realmID))
		m.metrics.RecordTokenRefresh(ctx, RefreshResultReused)
		return m.loadActive(ctx, realmID)
	}

	m.metrics.RecordTokenRefresh(ctx, RefreshResultRefreshed)
	m.logger.Info("Access token refreshed",
		zap.String("realm_id", realmID),
		zap.Time("access_expires_at", token.AccessExpiresAt),
		zap.Time("refresh_expires_at", token.RefreshExpiresAt))
	return token, nil
}

// acquire takes the in-process realm semaphore and, when configured, the
// distributed realm lock
func (m *TokenManager) acquire(ctx context.Context, realmID string) (func(), error) {
	m.mu.Lock()
	sem, ok := m.realmLocks[realmID]
	if !ok {
		sem = make(chan struct{}, 1)
		m.realmLocks[realmID] = sem
	}
	m.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	releaseLocal := func() { <-sem }

	if m.locker == nil {
		return releaseLocal, nil
	}
	unlock, err := m.locker.Lock(ctx, realmID)
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("lock realm %s: %w", realmID, err)
	}
	return func() {
		unlock()
		releaseLocal()
	}, nil
}

func (m *TokenManager) loadActive(ctx context.Context, realmID string) (*integration.OAuthToken, error) {
	token, err := m.repo.FindActiveByRealm(ctx, realmID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, integration.ErrNotConnected
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// expire deactivates the realm's token and returns ErrReauthorizationRequired
func (m *TokenManager) expire(ctx context.Context, realmID string) error {
	m.metrics.RecordTokenRefresh(ctx, RefreshResultExpired)
	m.logger.Error("Refresh token expired, reauthorization required", zap.String("realm_id", realmID))
	if err := m.repo.Deactivate(ctx, realmID); err != nil {
		m.logger.Error("Failed to deactivate expired token", zap.String("realm_id", realmID), zap.Error(err))
	}
	return integration.ErrReauthorizationRequired
}

// ---------------------------------------------------------------------------
// Authorization flow
// ---------------------------------------------------------------------------

// AuthorizeURL returns the URL that starts the authorization flow
func (m *TokenManager) AuthorizeURL(scopes []string) (string, error) {
	if len(scopes) == 0 {
		scopes = m.config.DefaultScopes
	}
	state, err := m.signer.Sign(scopes)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return m.provider.AuthCodeURL(state, scopes), nil
}

// CompleteAuthorization verifies the callback state, exchanges the code and
// stores the realm's new active token
func (m *TokenManager) CompleteAuthorization(ctx context.Context, code, state, realmID string) (*integration.OAuthToken, error) {
	if code == "" || realmID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("code and realm id are required")
	}
	scopes, err := m.signer.Verify(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidOAuthState, err)
	}

	grant, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if grant.Scope == "" && len(scopes) > 0 {
		grant.Scope = strings.Join(scopes, " ")
	}

	token, err := integration.NewOAuthToken(realmID, *grant, m.now())
	if err != nil {
		return nil, err
	}
	release, err := m.acquire(ctx, realmID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := m.repo.ReplaceActive(ctx, token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	m.logger.Info("Realm connected", zap.String("realm_id", realmID), zap.Strings("scopes", token.Scopes()))
	return token, nil
}

// Status reports the authorization state of a realm
func (m *TokenManager) Status(ctx context.Context, realmID string) (*ConnectionStatus, error) {
	status := &ConnectionStatus{RealmID: realmID, State: integration.TokenStateUnauthenticated, Scopes: []string{}}

	token, err := m.loadActive(ctx, realmID)
	if errors.Is(err, integration.ErrNotConnected) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.State = token.State(m.now(), m.config.RefreshWindow)
	status.Connected = status.State.IsAuthorized()
	status.AccessExpiresAt = &token.AccessExpiresAt
	status.RefreshExpiresAt = &token.RefreshExpiresAt
	status.LastRefreshedAt = token.LastRefreshedAt
	status.Scopes = token.Scopes()
	return status, nil
}

// Disconnect revokes the realm's refresh token and deactivates it locally.
// Revocation is best effort; the local token is deactivated regardless.
func (m *TokenManager) Disconnect(ctx context.Context, realmID string) error {
	token, err := m.loadActive(ctx, realmID)
	if err != nil {
		return err
	}
	if err := m.provider.Revoke(ctx, token.RefreshToken); err != nil {
		m.logger.Warn("Failed to revoke token", zap.String("realm_id", realmID), zap.Error(err))
	}
	if err := m.repo.Deactivate(ctx, realmID); err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	m.logger.Info("Realm disconnected", zap.String("realm_id", realmID))
	return nil
}
