package integration

import (
	"context"
	"fmt"
	"sync"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockProjectRepository is a mock implementation of billing.ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Project), args.Error(1)
}

func (m *MockProjectRepository) FindByRemoteJobID(ctx context.Context, remoteJobID string) (*billing.Project, error) {
	args := m.Called(ctx, remoteJobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Project), args.Error(1)
}

func (m *MockProjectRepository) FindActive(ctx context.Context) ([]*billing.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Project), args.Error(1)
}

func (m *MockProjectRepository) FindLinked(ctx context.Context) ([]*billing.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Project), args.Error(1)
}

func (m *MockProjectRepository) Save(ctx context.Context, project *billing.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

// MockCompanyRepository is a mock implementation of billing.CompanyRepository
type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Company), args.Error(1)
}

func (m *MockCompanyRepository) FindByRemoteID(ctx context.Context, kind integration.PartyKind, remoteID string) (*billing.Company, error) {
	args := m.Called(ctx, kind, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Company), args.Error(1)
}

func (m *MockCompanyRepository) FindByName(ctx context.Context, name string) (*billing.Company, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Company), args.Error(1)
}

func (m *MockCompanyRepository) Save(ctx context.Context, company *billing.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

// MockPartyResolver is a mock implementation of billing.PartyResolver
type MockPartyResolver struct {
	mock.Mock
}

func (m *MockPartyResolver) PrimaryCustomer(ctx context.Context, projectID uuid.UUID) (*billing.Company, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Company), args.Error(1)
}

// MockPayApplicationRepository is a mock implementation of billing.PayApplicationRepository
type MockPayApplicationRepository struct {
	mock.Mock
}

func (m *MockPayApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PayApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PayApplication), args.Error(1)
}

func (m *MockPayApplicationRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.PayApplication, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.PayApplication), args.Error(1)
}

func (m *MockPayApplicationRepository) FindAllByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.PayApplication, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.PayApplication), args.Error(1)
}

func (m *MockPayApplicationRepository) FindWithRemoteInvoice(ctx context.Context) ([]*billing.PayApplication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.PayApplication), args.Error(1)
}

func (m *MockPayApplicationRepository) Save(ctx context.Context, app *billing.PayApplication) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockPayApplicationRepository) SaveAll(ctx context.Context, apps []*billing.PayApplication) error {
	args := m.Called(ctx, apps)
	return args.Error(0)
}

// MockChangeOrderRepository is a mock implementation of billing.ChangeOrderRepository
type MockChangeOrderRepository struct {
	mock.Mock
}

func (m *MockChangeOrderRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.ChangeOrder, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.ChangeOrder), args.Error(1)
}

func (m *MockChangeOrderRepository) SaveAll(ctx context.Context, orders []*billing.ChangeOrder) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}

// MockProjectIDLister is a mock implementation of billing.ProjectIDLister
type MockProjectIDLister struct {
	mock.Mock
}

func (m *MockProjectIDLister) ProjectIDsWithPayApplications(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// =============================================================================
// Mock Gateways
// =============================================================================

// MockInvoiceGateway is a mock implementation of integration.InvoiceGateway
type MockInvoiceGateway struct {
	mock.Mock
}

func (m *MockInvoiceGateway) GetInvoice(ctx context.Context, realmID, id string) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, realmID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockInvoiceGateway) FindInvoiceByDocNumber(ctx context.Context, realmID, docNumber string) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, realmID, docNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockInvoiceGateway) CreateInvoice(ctx context.Context, realmID string, invoice integration.RemoteInvoice) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, realmID, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockInvoiceGateway) UpdateInvoice(ctx context.Context, realmID string, invoice integration.RemoteInvoice) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, realmID, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockInvoiceGateway) FindItemByName(ctx context.Context, realmID, name string) (*integration.RemoteItem, error) {
	args := m.Called(ctx, realmID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteItem), args.Error(1)
}

func (m *MockInvoiceGateway) CreateServiceItem(ctx context.Context, realmID, name, incomeAccountID string) (*integration.RemoteItem, error) {
	args := m.Called(ctx, realmID, name, incomeAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteItem), args.Error(1)
}

func (m *MockInvoiceGateway) FindIncomeAccount(ctx context.Context, realmID, subType string) (*integration.RemoteAccount, error) {
	args := m.Called(ctx, realmID, subType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteAccount), args.Error(1)
}

func (m *MockInvoiceGateway) ListPaymentsForCustomer(ctx context.Context, realmID, customerID string) ([]integration.RemotePayment, error) {
	args := m.Called(ctx, realmID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemotePayment), args.Error(1)
}

// MockReportGateway is a mock implementation of integration.ReportGateway
type MockReportGateway struct {
	mock.Mock
}

func (m *MockReportGateway) GeneralLedger(ctx context.Context, realmID string, query integration.ReportQuery) (*integration.FetchedReport, error) {
	args := m.Called(ctx, realmID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.FetchedReport), args.Error(1)
}

func (m *MockReportGateway) ProfitAndLoss(ctx context.Context, realmID string, query integration.ReportQuery) (*integration.FetchedReport, error) {
	args := m.Called(ctx, realmID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.FetchedReport), args.Error(1)
}

// MockReportArchive is a mock implementation of ReportArchive
type MockReportArchive struct {
	mock.Mock
}

func (m *MockReportArchive) Store(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

// MockOAuthProvider is a mock implementation of OAuthProvider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthCodeURL(state string, scopes []string) string {
	args := m.Called(state, scopes)
	return args.String(0)
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*integration.TokenGrant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenGrant), args.Error(1)
}

func (m *MockOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*integration.TokenGrant, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenGrant), args.Error(1)
}

func (m *MockOAuthProvider) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockStateSigner is a mock implementation of StateSigner
type MockStateSigner struct {
	mock.Mock
}

func (m *MockStateSigner) Sign(scopes []string) (string, error) {
	args := m.Called(scopes)
	return args.String(0), args.Error(1)
}

func (m *MockStateSigner) Verify(state string) ([]string, error) {
	args := m.Called(state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var (
	_ billing.ProjectRepository        = (*MockProjectRepository)(nil)
	_ billing.CompanyRepository        = (*MockCompanyRepository)(nil)
	_ billing.PartyResolver            = (*MockPartyResolver)(nil)
	_ billing.PayApplicationRepository = (*MockPayApplicationRepository)(nil)
	_ billing.ChangeOrderRepository    = (*MockChangeOrderRepository)(nil)
	_ billing.ProjectIDLister          = (*MockProjectIDLister)(nil)
	_ integration.InvoiceGateway       = (*MockInvoiceGateway)(nil)
	_ integration.ReportGateway        = (*MockReportGateway)(nil)
	_ ReportArchive                    = (*MockReportArchive)(nil)
	_ OAuthProvider                    = (*MockOAuthProvider)(nil)
	_ StateSigner                      = (*MockStateSigner)(nil)
)

// =============================================================================
// In-memory fakes
// =============================================================================

// memoryTokenRepository keeps tokens in memory with version-checked updates
type memoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]integration.OAuthToken
}

func newMemoryTokenRepository(tokens ...*integration.OAuthToken) *memoryTokenRepository {
	r := &memoryTokenRepository{tokens: make(map[string]integration.OAuthToken)}
	for _, t := range tokens {
		r.tokens[t.RealmID] = *t
	}
	return r
}

func (r *memoryTokenRepository) FindActiveByRealm(_ context.Context, realmID string) (*integration.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[realmID]
	if !ok || !t.IsActive {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r *memoryTokenRepository) ReplaceActive(_ context.Context, token *integration.OAuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.RealmID] = *token
	return nil
}

func (r *memoryTokenRepository) UpdateIfUnchanged(_ context.Context, token *integration.OAuthToken, priorVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tokens[token.RealmID]
	if !ok || !current.IsActive || current.Version != priorVersion {
		return false, nil
	}
	r.tokens[token.RealmID] = *token
	return true, nil
}

func (r *memoryTokenRepository) Deactivate(_ context.Context, realmID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[realmID]; ok {
		t.IsActive = false
		r.tokens[realmID] = t
	}
	return nil
}

func (r *memoryTokenRepository) get(realmID string) integration.OAuthToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[realmID]
}

// fakeLedger is an in-memory remote ledger of parties and jobs
type fakeLedger struct {
	mu      sync.Mutex
	nextID  int
	parties map[string]integration.BillingParent
	jobs    map[string]integration.BillingChild
	creates int
	updates int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		parties: make(map[string]integration.BillingParent),
		jobs:    make(map[string]integration.BillingChild),
	}
}

func (l *fakeLedger) newID() string {
	l.nextID++
	return fmt.Sprintf("qb-%d", l.nextID)
}

// GetParty reads by kind and id: a vendor id is not a customer
func (l *fakeLedger) GetParty(_ context.Context, _ string, kind integration.PartyKind, id string) (*integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.parties[id]
	if !ok || p.Kind != kind {
		return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 400, "610", "Object Not Found", id)
	}
	return &p, nil
}

func (l *fakeLedger) FindPartiesByName(_ context.Context, _ string, kind integration.PartyKind, name string) ([]integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []integration.BillingParent
	for _, p := range l.parties {
		if p.Kind == kind && integration.NamesMatch(p.DisplayName, name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) CreateParty(_ context.Context, _ string, party integration.BillingParent) (*integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	party.ID = l.newID()
	party.SyncToken = "0"
	l.parties[party.ID] = party
	l.creates++
	return &party, nil
}

func (l *fakeLedger) UpdateParty(_ context.Context, _ string, party integration.BillingParent) (*integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parties[party.ID] = party
	l.updates++
	return &party, nil
}

func (l *fakeLedger) ListVendors(_ context.Context, _ string, onlyContractors bool) ([]integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []integration.BillingParent
	for _, p := range l.parties {
		if p.Kind == integration.PartyKindVendor && (!onlyContractors || p.Is1099) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) ListCustomers(_ context.Context, _ string) ([]integration.BillingParent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []integration.BillingParent
	for _, p := range l.parties {
		if p.Kind == integration.PartyKindCustomer {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) GetJob(_ context.Context, _ string, id string) (*integration.BillingChild, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	if !ok {
		return nil, integration.NewRemoteError(integration.ErrRemoteValidation, 400, "610", "Object Not Found", id)
	}
	return &j, nil
}

func (l *fakeLedger) FindJobsByPrefix(_ context.Context, _ string, prefix string) ([]integration.BillingChild, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []integration.BillingChild
	for _, j := range l.jobs {
		if len(j.DisplayName) >= len(prefix) && j.DisplayName[:len(prefix)] == prefix {
			out = append(out, j)
		}
	}
	return out, nil
}

func (l *fakeLedger) CreateJob(_ context.Context, _ string, job integration.BillingChild) (*integration.BillingChild, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job.ID = l.newID()
	job.SyncToken = "0"
	l.jobs[job.ID] = job
	l.creates++
	return &job, nil
}

func (l *fakeLedger) UpdateJob(_ context.Context, _ string, job integration.BillingChild) (*integration.BillingChild, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[job.ID] = job
	l.updates++
	return &job, nil
}

var (
	_ integration.TokenRepository = (*memoryTokenRepository)(nil)
	_ integration.PartyGateway    = (*fakeLedger)(nil)
	_ integration.JobGateway      = (*fakeLedger)(nil)
)
