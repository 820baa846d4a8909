package handler

import (
	"context"
	"time"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockSyncService implements every service interface the handlers consume
type mockSyncService struct {
	mock.Mock
}

var (
	_ ConnectionService  = (*mockSyncService)(nil)
	_ ProjectSyncService = (*mockSyncService)(nil)
	_ InvoiceSyncService = (*mockSyncService)(nil)
	_ CostService        = (*mockSyncService)(nil)
	_ BillingService     = (*mockSyncService)(nil)
)

func result[T any](args mock.Arguments) (*T, error) {
	r, _ := args.Get(0).(*T)
	return r, args.Error(1)
}

func (m *mockSyncService) AuthorizeURL(scopes []string) (string, error) {
	args := m.Called(scopes)
	return args.String(0), args.Error(1)
}

func (m *mockSyncService) CompleteAuthorization(ctx context.Context, code, state, realmID string) (*appintegration.ConnectionStatus, error) {
	return result[appintegration.ConnectionStatus](m.Called(ctx, code, state, realmID))
}

func (m *mockSyncService) ConnectionStatus(ctx context.Context) (*appintegration.ConnectionStatus, error) {
	return result[appintegration.ConnectionStatus](m.Called(ctx))
}

func (m *mockSyncService) RefreshToken(ctx context.Context) (*appintegration.ConnectionStatus, error) {
	return result[appintegration.ConnectionStatus](m.Called(ctx))
}

func (m *mockSyncService) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSyncService) SyncProject(ctx context.Context, projectID uuid.UUID) (*appintegration.ProjectSyncResult, error) {
	return result[appintegration.ProjectSyncResult](m.Called(ctx, projectID))
}

func (m *mockSyncService) SyncProjects(ctx context.Context, ids []uuid.UUID) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx, ids))
}

func (m *mockSyncService) SyncAllProjects(ctx context.Context) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx))
}

func (m *mockSyncService) SyncCompany(ctx context.Context, companyID uuid.UUID, role billing.CompanyRole) (*appintegration.CompanySyncResult, error) {
	return result[appintegration.CompanySyncResult](m.Called(ctx, companyID, role))
}

func (m *mockSyncService) PullVendors(ctx context.Context) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx))
}

func (m *mockSyncService) PullSubcontractors(ctx context.Context) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx))
}

func (m *mockSyncService) PullCustomers(ctx context.Context) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx))
}

func (m *mockSyncService) SyncPayApp(ctx context.Context, payAppID uuid.UUID) (*appintegration.InvoiceSyncResult, error) {
	return result[appintegration.InvoiceSyncResult](m.Called(ctx, payAppID))
}

func (m *mockSyncService) SyncProjectPayApps(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx, projectID))
}

func (m *mockSyncService) PullPayment(ctx context.Context, payAppID uuid.UUID) (*appintegration.PaymentPullResult, error) {
	return result[appintegration.PaymentPullResult](m.Called(ctx, payAppID))
}

func (m *mockSyncService) PullProjectPayments(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx, projectID))
}

func (m *mockSyncService) ProjectCost(ctx context.Context, projectID uuid.UUID, dateRange costing.DateRange) (*appintegration.CostSummary, error) {
	return result[appintegration.CostSummary](m.Called(ctx, projectID, dateRange))
}

func (m *mockSyncService) JobCost(ctx context.Context, jobID string, dateRange costing.DateRange) (*appintegration.CostSummary, error) {
	return result[appintegration.CostSummary](m.Called(ctx, jobID, dateRange))
}

func (m *mockSyncService) ProfitAndLoss(ctx context.Context, jobID string, dateRange costing.DateRange) (*appintegration.ProfitAndLossSummary, error) {
	return result[appintegration.ProfitAndLossSummary](m.Called(ctx, jobID, dateRange))
}

func (m *mockSyncService) RecomputeProject(ctx context.Context, projectID uuid.UUID) (*appintegration.RecomputeResult, error) {
	return result[appintegration.RecomputeResult](m.Called(ctx, projectID))
}

func (m *mockSyncService) RecomputeAll(ctx context.Context) (*integration.BatchResult, error) {
	return result[integration.BatchResult](m.Called(ctx))
}

func (m *mockSyncService) RenumberChangeOrders(ctx context.Context, projectID uuid.UUID) (*appintegration.RenumberResult, error) {
	return result[appintegration.RenumberResult](m.Called(ctx, projectID))
}

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, key, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type mockScheduler struct {
	mock.Mock
	running bool
}

var _ JobScheduler = (*mockScheduler)(nil)

func (m *mockScheduler) Submit(kind scheduler.JobKind, projectID *uuid.UUID, trigger scheduler.JobTrigger) (scheduler.SyncJob, error) {
	args := m.Called(kind, projectID, trigger)
	return args.Get(0).(scheduler.SyncJob), args.Error(1)
}

func (m *mockScheduler) Get(id uuid.UUID) (scheduler.SyncJob, error) {
	args := m.Called(id)
	return args.Get(0).(scheduler.SyncJob), args.Error(1)
}

func (m *mockScheduler) History(limit int) []scheduler.SyncJob {
	return m.Called(limit).Get(0).([]scheduler.SyncJob)
}

func (m *mockScheduler) IsRunning() bool {
	return m.running
}
