package integration

import (
	"context"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
)

// OAuthProvider talks to the authorization server
type OAuthProvider interface {
	// AuthCodeURL returns the URL a user visits to grant access
	AuthCodeURL(state string, scopes []string) string
	// Exchange trades an authorization code for a token pair
	Exchange(ctx context.Context, code string) (*integration.TokenGrant, error)
	// Refresh trades a refresh token for a new pair. A refresh token the server
	// no longer accepts yields integration.ErrReauthorizationRequired.
	Refresh(ctx context.Context, refreshToken string) (*integration.TokenGrant, error)
	// Revoke invalidates a refresh token
	Revoke(ctx context.Context, token string) error
}

// StateSigner signs and verifies the OAuth state parameter
type StateSigner interface {
	Sign(scopes []string) (string, error)
	// Verify returns the scopes embedded in a valid state
	Verify(state string) ([]string, error)
}

// ReportArchive keeps raw report payloads
type ReportArchive interface {
	Store(ctx context.Context, key string, payload []byte) error
}

// MetricsRecorder records sync outcomes
type MetricsRecorder interface {
	RecordSyncItem(ctx context.Context, operation string, outcome integration.Outcome)
	RecordTokenRefresh(ctx context.Context, result string)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordSyncItem(context.Context, string, integration.Outcome) {}
func (NoopMetrics) RecordTokenRefresh(context.Context, string) {}

// BillingTransactionScope runs billing writes in one database transaction
type BillingTransactionScope interface {
	// Execute runs fn within a transaction; an error from fn rolls it back
	Execute(ctx context.Context, fn func(repos BillingRepositories) error) error
}

// BillingRepositories gives access to billing repositories within a transaction
type BillingRepositories interface {
	PayApplications() billing.PayApplicationRepository
	ChangeOrders() billing.ChangeOrderRepository
}

// NoOpBillingTransactionScope runs fn without a transaction.
// This is useful for testing.
type NoOpBillingTransactionScope struct {
	payApps      billing.PayApplicationRepository
	changeOrders billing.ChangeOrderRepository
}

// NewNoOpBillingTransactionScope creates a NoOpBillingTransactionScope
func NewNoOpBillingTransactionScope(payApps billing.PayApplicationRepository, changeOrders billing.ChangeOrderRepository) *NoOpBillingTransactionScope {
	return &NoOpBillingTransactionScope{payApps: payApps, changeOrders: changeOrders}
}

// Execute runs fn directly
func (s *NoOpBillingTransactionScope) Execute(_ context.Context, fn func(repos BillingRepositories) error) error {
	return fn(s)
}

// PayApplications returns the pay application repository
func (s *NoOpBillingTransactionScope) PayApplications() billing.PayApplicationRepository {
	return s.payApps
}

// ChangeOrders returns the change order repository
func (s *NoOpBillingTransactionScope) ChangeOrders() billing.ChangeOrderRepository {
	return s.changeOrders
}

var _ BillingTransactionScope = (*NoOpBillingTransactionScope)(nil)
var _ BillingRepositories = (*NoOpBillingTransactionScope)(nil)
