package integration

import (
	"context"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncService is the single entry point used by both the HTTP handlers and
// the scheduler, so an on-demand action and its scheduled counterpart run the
// same code.
type SyncService struct {
	realmID  string
	tokens   *TokenManager
	engine   *SyncEngine
	invoices *InvoiceSyncer
	costs    *CostService
	billing  *BillingService
	logger   *zap.Logger
}

// NewSyncService creates a SyncService
func NewSyncService(
	realmID string,
	tokens *TokenManager,
	engine *SyncEngine,
	invoices *InvoiceSyncer,
	costs *CostService,
	billingService *BillingService,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		realmID:  realmID,
		tokens:   tokens,
		engine:   engine,
		invoices: invoices,
		costs:    costs,
		billing:  billingService,
		logger:   logger,
	}
}

// RealmID returns the realm this service syncs with
func (s *SyncService) RealmID() string {
	return s.realmID
}

// EnsureConnected fails fast with ErrNotConnected or
// ErrReauthorizationRequired before a batch starts
func (s *SyncService) EnsureConnected(ctx context.Context) error {
	_, err := s.tokens.GetValidAccessToken(ctx, s.realmID)
	return err
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

// AuthorizeURL starts the authorization flow
func (s *SyncService) AuthorizeURL(scopes []string) (string, error) {
	return s.tokens.AuthorizeURL(scopes)
}

// CompleteAuthorization handles the authorization callback
func (s *SyncService) CompleteAuthorization(ctx context.Context, code, state, realmID string) (*ConnectionStatus, error) {
	if _, err := s.tokens.CompleteAuthorization(ctx, code, state, realmID); err != nil {
		return nil, err
	}
	return s.tokens.Status(ctx, realmID)
}

// ConnectionStatus reports the authorization state of the realm
func (s *SyncService) ConnectionStatus(ctx context.Context) (*ConnectionStatus, error) {
	return s.tokens.Status(ctx, s.realmID)
}

// RefreshToken forces a token refresh
func (s *SyncService) RefreshToken(ctx context.Context) (*ConnectionStatus, error) {
	if _, err := s.tokens.Refresh(ctx, s.realmID); err != nil {
		return nil, err
	}
	return s.tokens.Status(ctx, s.realmID)
}

// Disconnect revokes and deactivates the realm's token
func (s *SyncService) Disconnect(ctx context.Context) error {
	return s.tokens.Disconnect(ctx, s.realmID)
}

// ---------------------------------------------------------------------------
// Projects and companies
// ---------------------------------------------------------------------------

// SyncProject syncs one project to its remote customer and job
func (s *SyncService) SyncProject(ctx context.Context, projectID uuid.UUID) (*ProjectSyncResult, error) {
	return s.engine.SyncProjectToRemote(ctx, projectID)
}

// SyncProjects syncs the given projects
func (s *SyncService) SyncProjects(ctx context.Context, ids []uuid.UUID) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.engine.SyncProjects(ctx, ids), nil
}

// SyncAllProjects syncs every active project
func (s *SyncService) SyncAllProjects(ctx context.Context) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.engine.SyncAllProjects(ctx)
}

// SyncCompany syncs a company in the given role
func (s *SyncService) SyncCompany(ctx context.Context, companyID uuid.UUID, role billing.CompanyRole) (*CompanySyncResult, error) {
	return s.engine.SyncCompanyToRemote(ctx, companyID, role)
}

// PullVendors imports remote vendors
func (s *SyncService) PullVendors(ctx context.Context) (*integration.BatchResult, error) {
	return s.engine.PullVendors(ctx)
}

// PullSubcontractors imports remote 1099 vendors
func (s *SyncService) PullSubcontractors(ctx context.Context) (*integration.BatchResult, error) {
	return s.engine.PullSubcontractors(ctx)
}

// PullCustomers imports remote top-level customers
func (s *SyncService) PullCustomers(ctx context.Context) (*integration.BatchResult, error) {
	return s.engine.PullCustomers(ctx)
}

// ---------------------------------------------------------------------------
// Pay applications and payments
// ---------------------------------------------------------------------------

// SyncPayApp pushes one pay application
func (s *SyncService) SyncPayApp(ctx context.Context, payAppID uuid.UUID) (*InvoiceSyncResult, error) {
	return s.invoices.SyncPayAppToRemote(ctx, payAppID)
}

// SyncProjectPayApps pushes every live pay application of a project
func (s *SyncService) SyncProjectPayApps(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.invoices.SyncProjectPayApps(ctx, projectID)
}

// SyncPendingPayApps pushes pay applications that were never synced
func (s *SyncService) SyncPendingPayApps(ctx context.Context) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.invoices.SyncPendingPayApps(ctx)
}

// PullPayment reads the payments of one pay application
func (s *SyncService) PullPayment(ctx context.Context, payAppID uuid.UUID) (*PaymentPullResult, error) {
	return s.invoices.PullPaymentFromRemote(ctx, payAppID)
}

// PullProjectPayments reads payments for a project's invoiced pay applications
func (s *SyncService) PullProjectPayments(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.invoices.PullProjectPayments(ctx, projectID)
}

// PullAllPayments reads payments for every invoiced pay application
func (s *SyncService) PullAllPayments(ctx context.Context) (*integration.BatchResult, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return s.invoices.PullAllPayments(ctx)
}

// ---------------------------------------------------------------------------
// Costs
// ---------------------------------------------------------------------------

// ProjectCost computes the cost of a project's remote job
func (s *SyncService) ProjectCost(ctx context.Context, projectID uuid.UUID, dateRange costing.DateRange) (*CostSummary, error) {
	return s.costs.ComputeProjectCost(ctx, projectID, dateRange)
}

// JobCost computes the cost of a remote job
func (s *SyncService) JobCost(ctx context.Context, jobID string, dateRange costing.DateRange) (*CostSummary, error) {
	return s.costs.ComputeNetCost(ctx, jobID, dateRange)
}

// ProfitAndLoss summarizes a remote job's cash profit and loss
func (s *SyncService) ProfitAndLoss(ctx context.Context, jobID string, dateRange costing.DateRange) (*ProfitAndLossSummary, error) {
	return s.costs.ProfitAndLoss(ctx, jobID, dateRange)
}

// ---------------------------------------------------------------------------
// Billing invariants
// ---------------------------------------------------------------------------

// RecomputeProject applies the billing invariants to one project
func (s *SyncService) RecomputeProject(ctx context.Context, projectID uuid.UUID) (*RecomputeResult, error) {
	return s.billing.RecomputeProject(ctx, projectID)
}

// RecomputeAll applies the billing invariants to every billed project
func (s *SyncService) RecomputeAll(ctx context.Context) (*integration.BatchResult, error) {
	return s.billing.RecomputeAll(ctx)
}

// RenumberChangeOrders renumbers a project's change orders
func (s *SyncService) RenumberChangeOrders(ctx context.Context, projectID uuid.UUID) (*RenumberResult, error) {
	return s.billing.RenumberChangeOrders(ctx, projectID)
}
