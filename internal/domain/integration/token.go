package integration

import (
	"strings"
	"time"

	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultRefreshWindow is how long before access expiry a token is refreshed
const DefaultRefreshWindow = 5 * time.Minute

// TokenState is the authorization state of a realm
type TokenState string

const (
	// TokenStateUnauthenticated means no usable credential exists
	TokenStateUnauthenticated TokenState = "unauthenticated"
	// TokenStateValid means the access token can be used as is
	TokenStateValid TokenState = "valid"
	// TokenStateAccessExpired means the access token is expired (or about to
	// be) but the refresh token is still valid
	TokenStateAccessExpired TokenState = "access_expired"
	// TokenStateRefreshExpired means the refresh token is expired; terminal
	TokenStateRefreshExpired TokenState = "refresh_expired"
)

// IsAuthorized returns true for states that hold a usable refresh token
func (s TokenState) IsAuthorized() bool {
	return s == TokenStateValid || s == TokenStateAccessExpired
}

// TokenGrant is a token pair returned by the authorization server
type TokenGrant struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scope            string
}

// OAuthToken is the stored credential for one realm.
// Version increments on every write and guards concurrent refreshes.
type OAuthToken struct {
	ID               uuid.UUID
	RealmID          string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	LastRefreshedAt  *time.Time
	Scope            string
	IsActive         bool
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOAuthToken creates the active token for a realm from an authorization grant
func NewOAuthToken(realmID string, grant TokenGrant, now time.Time) (*OAuthToken, error) {
	if strings.TrimSpace(realmID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("realm id is required")
	}
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return nil, shared.ErrInvalidInput.WithMessage("grant must carry both access and refresh tokens")
	}
	return &OAuthToken{
		ID:               uuid.New(),
		RealmID:          realmID,
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		AccessExpiresAt:  grant.AccessExpiresAt,
		RefreshExpiresAt: grant.RefreshExpiresAt,
		Scope:            grant.Scope,
		IsActive:         true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// State derives the authorization state at now. A nil or inactive token is
// unauthenticated.
func (t *OAuthToken) State(now time.Time, window time.Duration) TokenState {
	if t == nil || !t.IsActive {
		return TokenStateUnauthenticated
	}
	if t.RefreshExpired(now) {
		return TokenStateRefreshExpired
	}
	if t.NeedsRefresh(now, window) {
		return TokenStateAccessExpired
	}
	return TokenStateValid
}

// NeedsRefresh reports whether the access token expires within window
func (t *OAuthToken) NeedsRefresh(now time.Time, window time.Duration) bool {
	return !now.Add(window).Before(t.AccessExpiresAt)
}

// RefreshExpired reports whether the refresh token can no longer be used
func (t *OAuthToken) RefreshExpired(now time.Time) bool {
	return !t.RefreshExpiresAt.IsZero() && !now.Before(t.RefreshExpiresAt)
}

// ApplyRefresh stores a refreshed token pair. The authorization server may
// omit the refresh token or its expiry, in which case the current ones stay.
func (t *OAuthToken) ApplyRefresh(grant TokenGrant, now time.Time) {
	t.AccessToken = grant.AccessToken
	t.AccessExpiresAt = grant.AccessExpiresAt
	if grant.RefreshToken != "" {
		t.RefreshToken = grant.RefreshToken
	}
	if !grant.RefreshExpiresAt.IsZero() {
		t.RefreshExpiresAt = grant.RefreshExpiresAt
	}
	if grant.Scope != "" {
		t.Scope = grant.Scope
	}
	refreshed := now
	t.LastRefreshedAt = &refreshed
	t.UpdatedAt = now
	t.Version++
}

// Deactivate marks the token unusable
func (t *OAuthToken) Deactivate(now time.Time) {
	t.IsActive = false
	t.UpdatedAt = now
	t.Version++
}

// Scopes returns the granted scopes
func (t *OAuthToken) Scopes() []string {
	return strings.Fields(t.Scope)
}
