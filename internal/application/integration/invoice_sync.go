package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service item defaults
const (
	DefaultServiceItemName   = "Construction Services"
	DefaultIncomeAccountType = "ServiceFeeIncome"
)

// InvoiceSyncerConfig configures the InvoiceSyncer
type InvoiceSyncerConfig struct {
	ServiceItemName string
	IncomeSubType   string
	LineDescription string
}

// InvoiceSyncResult reports the outcome of pushing one pay application
type InvoiceSyncResult struct {
	PayApplicationID uuid.UUID           `json:"pay_application_id"`
	Outcome          integration.Outcome `json:"outcome"`
	Action           integration.Action  `json:"action,omitempty"`
	RemoteInvoiceID  string              `json:"remote_invoice_id,omitempty"`
	DocNumber        string              `json:"doc_number,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Reason           string              `json:"reason,omitempty"`
}

// PaymentPullResult reports the payments found for one pay application
type PaymentPullResult struct {
	PayApplicationID uuid.UUID                 `json:"pay_application_id"`
	Outcome          integration.Outcome       `json:"outcome"`
	RemoteInvoiceID  string                    `json:"remote_invoice_id,omitempty"`
	PaymentTotal     decimal.Decimal           `json:"payment_total"`
	Balance          decimal.Decimal           `json:"balance"`
	PaymentStatus    integration.PaymentStatus `json:"payment_status"`
	Reason           string                    `json:"reason,omitempty"`
}

// InvoiceSyncer pushes pay applications as remote invoices under the
// project's job and reads payments back. A failed push is recorded on the
// pay application and left for an explicit retry.
type InvoiceSyncer struct {
	realmID  string
	payApps  billing.PayApplicationRepository
	projects billing.ProjectRepository
	gateway  integration.InvoiceGateway
	runner   *BatchRunner
	config   InvoiceSyncerConfig
	logger   *zap.Logger
	now      func() time.Time

	itemMu sync.Mutex
	itemID string
}

// NewInvoiceSyncer creates an InvoiceSyncer for one realm
func NewInvoiceSyncer(
	realmID string,
	payApps billing.PayApplicationRepository,
	projects billing.ProjectRepository,
	gateway integration.InvoiceGateway,
	runner *BatchRunner,
	config InvoiceSyncerConfig,
	logger *zap.Logger,
) *InvoiceSyncer {
	if config.ServiceItemName == "" {
		config.ServiceItemName = DefaultServiceItemName
	}
	if config.IncomeSubType == "" {
		config.IncomeSubType = DefaultIncomeAccountType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceSyncer{
		realmID:  realmID,
		payApps:  payApps,
		projects: projects,
		gateway:  gateway,
		runner:   runner,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncPayAppToRemote pushes one pay application. Pay applications with
// nothing due, or whose project has no remote job, are skipped without a
// remote call. The outcome is stored on the pay application either way.
func (s *InvoiceSyncer) SyncPayAppToRemote(ctx context.Context, payAppID uuid.UUID) (*InvoiceSyncResult, error) {
	app, err := s.payApps.FindByID(ctx, payAppID)
	if err != nil {
		return nil, fmt.Errorf("load pay application: %w", err)
	}
	result := &InvoiceSyncResult{
		PayApplicationID: app.ID,
		Amount:           valueobject.RoundCents(app.CurrentPaymentDue),
	}

	if !app.Billable() {
		result.Outcome = integration.OutcomeSkipped
		result.Reason = "current payment due is zero"
		return result, nil
	}

	project, err := s.projects.FindByID(ctx, app.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.HasRemoteJob() {
		result.Outcome = integration.OutcomeSkipped
		result.Reason = fmt.Sprintf("project %s is not synced to a remote job", project.Number)
		return result, nil
	}
	result.DocNumber = app.DocNumber(project.Number)

	invoice, action, err := s.pushInvoice(ctx, app, project, result.DocNumber, result.Amount)
	if err != nil {
		app.MarkSyncFailed(err.Error(), s.now())
		if saveErr := s.payApps.Save(ctx, app); saveErr != nil {
			s.logger.Error("Failed to record sync failure",
				zap.String("pay_application_id", app.ID.String()),
				zap.Error(saveErr))
		}
		s.logger.Warn("Pay application sync failed",
			zap.String("pay_application_id", app.ID.String()),
			zap.String("doc_number", result.DocNumber),
			zap.Error(err))
		return nil, err
	}

	app.MarkSynced(invoice.ID, s.now())
	if err := s.payApps.Save(ctx, app); err != nil {
		return nil, fmt.Errorf("save pay application: %w", err)
	}

	s.logger.Info("Pay application synced",
		zap.String("pay_application_id", app.ID.String()),
		zap.String("doc_number", result.DocNumber),
		zap.String("remote_invoice_id", invoice.ID),
		zap.String("action", string(action)))

	result.Outcome = integration.OutcomeSucceeded
	result.Action = action
	result.RemoteInvoiceID = invoice.ID
	return result, nil
}

// pushInvoice updates the stored invoice, adopts an invoice with the same
// doc number, or creates a new one
func (s *InvoiceSyncer) pushInvoice(ctx context.Context, app *billing.PayApplication, project *billing.Project, docNumber string, amount decimal.Decimal) (*integration.RemoteInvoice, integration.Action, error) {
	itemID, err := s.serviceItem(ctx)
	if err != nil {
		return nil, "", err
	}

	txnDate := s.now()
	if app.PeriodEnd != nil {
		txnDate = *app.PeriodEnd
	}
	description := s.config.LineDescription
	if description == "" {
		description = fmt.Sprintf("Pay Application #%d - %s", app.SequenceNumber, project.Name)
	}
	desired := integration.RemoteInvoice{
		DocNumber:  docNumber,
		CustomerID: project.RemoteJobID,
		TxnDate:    txnDate,
		Lines: []integration.InvoiceLine{{
			Amount:      amount,
			Description: description,
			ItemID:      itemID,
		}},
	}

	if app.HasRemoteInvoice() {
		current, err := s.gateway.GetInvoice(ctx, s.realmID, app.RemoteInvoiceID)
		if err != nil {
			return nil, "", err
		}
		desired.ID = current.ID
		desired.SyncToken = current.SyncToken
		updated, err := s.gateway.UpdateInvoice(ctx, s.realmID, desired)
		if err != nil {
			return nil, "", err
		}
		return updated, integration.ActionUpdated, nil
	}

	existing, err := s.gateway.FindInvoiceByDocNumber(ctx, s.realmID, docNumber)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		if existing.CustomerID != project.RemoteJobID {
			return nil, "", fmt.Errorf("%w: invoice %s belongs to customer %s, not job %s",
				integration.ErrRemoteConflict, docNumber, existing.CustomerID, project.RemoteJobID)
		}
		return existing, integration.ActionLinked, nil
	}

	created, err := s.gateway.CreateInvoice(ctx, s.realmID, desired)
	if err != nil {
		return nil, "", err
	}
	return created, integration.ActionCreated, nil
}

// serviceItem returns the id of the service item every invoice line uses,
// creating the item on first use. The id is cached for the process lifetime.
func (s *InvoiceSyncer) serviceItem(ctx context.Context) (string, error) {
	s.itemMu.Lock()
	defer s.itemMu.Unlock()
	if s.itemID != "" {
		return s.itemID, nil
	}

	item, err := s.gateway.FindItemByName(ctx, s.realmID, s.config.ServiceItemName)
	if err != nil {
		return "", fmt.Errorf("find service item: %w", err)
	}
	if item == nil {
		account, err := s.gateway.FindIncomeAccount(ctx, s.realmID, s.config.IncomeSubType)
		if err != nil {
			return "", fmt.Errorf("find income account: %w", err)
		}
		if account == nil {
			account, err = s.gateway.FindIncomeAccount(ctx, s.realmID, "")
			if err != nil {
				return "", fmt.Errorf("find income account: %w", err)
			}
		}
		if account == nil {
			return "", fmt.Errorf("%w: no income account for service item %q",
				integration.ErrRemoteValidation, s.config.ServiceItemName)
		}
		item, err = s.gateway.CreateServiceItem(ctx, s.realmID, s.config.ServiceItemName, account.ID)
		if err != nil {
			return "", fmt.Errorf("create service item: %w", err)
		}
		s.logger.Info("Service item created",
			zap.String("item_id", item.ID),
			zap.String("income_account_id", account.ID))
	}
	s.itemID = item.ID
	return s.itemID, nil
}

// SyncProjectPayApps pushes every live pay application of a project
func (s *InvoiceSyncer) SyncProjectPayApps(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	apps, err := s.payApps.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pay applications: %w", err)
	}
	return s.SyncPayApps(ctx, payAppIDs(apps)), nil
}

// SyncPendingPayApps pushes the billable pay applications of linked projects
// that were never synced. Failed pushes are not picked up again; they wait
// for an explicit retry.
func (s *InvoiceSyncer) SyncPendingPayApps(ctx context.Context) (*integration.BatchResult, error) {
	projects, err := s.projects.FindLinked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list linked projects: %w", err)
	}
	var pending []*billing.PayApplication
	for _, project := range projects {
		apps, err := s.payApps.FindByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("list pay applications of project %s: %w", project.Number, err)
		}
		for _, app := range apps {
			if app.SyncStatus == integration.SyncStatusNotSynced && app.Billable() {
				pending = append(pending, app)
			}
		}
	}
	return s.SyncPayApps(ctx, payAppIDs(pending)), nil
}

// SyncPayApps pushes the given pay applications sequentially
func (s *InvoiceSyncer) SyncPayApps(ctx context.Context, ids []uuid.UUID) *integration.BatchResult {
	return RunBatch(ctx, s.runner, OpSyncPayApp, ids, uuid.UUID.String,
		func(ctx context.Context, id uuid.UUID) (integration.ItemResult, error) {
			res, err := s.SyncPayAppToRemote(ctx, id)
			if err != nil {
				return integration.ItemResult{}, err
			}
			return integration.ItemResult{
				Outcome:  res.Outcome,
				Action:   res.Action,
				RemoteID: res.RemoteInvoiceID,
				Message:  res.Reason,
			}, nil
		})
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

// PullPaymentFromRemote reads the payments applied to a pay application's
// invoice and stores the total. Nothing is written remotely. A pay
// application that was never invoiced is skipped with a reason.
func (s *InvoiceSyncer) PullPaymentFromRemote(ctx context.Context, payAppID uuid.UUID) (*PaymentPullResult, error) {
	app, err := s.payApps.FindByID(ctx, payAppID)
	if err != nil {
		return nil, fmt.Errorf("load pay application: %w", err)
	}
	if !app.HasRemoteInvoice() {
		return &PaymentPullResult{
			PayApplicationID: app.ID,
			Outcome:          integration.OutcomeSkipped,
			PaymentTotal:     app.PaymentTotal,
			Balance:          decimal.Zero,
			PaymentStatus:    app.PaymentStatus,
			Reason:           "pay application has no remote invoice",
		}, nil
	}

	invoice, err := s.gateway.GetInvoice(ctx, s.realmID, app.RemoteInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", app.RemoteInvoiceID, err)
	}
	payments, err := s.gateway.ListPaymentsForCustomer(ctx, s.realmID, invoice.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.AppliedTo(invoice.ID))
	}

	app.ApplyPayments(total, invoice.Balance, s.now())
	if err := s.payApps.Save(ctx, app); err != nil {
		return nil, fmt.Errorf("save payment status: %w", err)
	}

	s.logger.Debug("Payments pulled",
		zap.String("pay_application_id", app.ID.String()),
		zap.String("remote_invoice_id", invoice.ID),
		zap.String("payment_total", app.PaymentTotal.StringFixed(valueobject.CentPlaces)),
		zap.String("payment_status", string(app.PaymentStatus)))

	return &PaymentPullResult{
		PayApplicationID: app.ID,
		Outcome:          integration.OutcomeSucceeded,
		RemoteInvoiceID:  invoice.ID,
		PaymentTotal:     app.PaymentTotal,
		Balance:          invoice.Balance,
		PaymentStatus:    app.PaymentStatus,
	}, nil
}

// PullProjectPayments pulls payments for every invoiced pay application of
// a project
func (s *InvoiceSyncer) PullProjectPayments(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	apps, err := s.payApps.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pay applications: %w", err)
	}
	invoiced := apps[:0:0]
	for _, app := range apps {
		if app.HasRemoteInvoice() {
			invoiced = append(invoiced, app)
		}
	}
	return s.PullPayments(ctx, payAppIDs(invoiced)), nil
}

// PullAllPayments pulls payments for every invoiced pay application
func (s *InvoiceSyncer) PullAllPayments(ctx context.Context) (*integration.BatchResult, error) {
	apps, err := s.payApps.FindWithRemoteInvoice(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoiced pay applications: %w", err)
	}
	return s.PullPayments(ctx, payAppIDs(apps)), nil
}

// PullPayments pulls payments for the given pay applications sequentially
func (s *InvoiceSyncer) PullPayments(ctx context.Context, ids []uuid.UUID) *integration.BatchResult {
	return RunBatch(ctx, s.runner, OpPullPayment, ids, uuid.UUID.String,
		func(ctx context.Context, id uuid.UUID) (integration.ItemResult, error) {
			res, err := s.PullPaymentFromRemote(ctx, id)
			if err != nil {
				return integration.ItemResult{}, err
			}
			message := string(res.PaymentStatus)
			if res.Reason != "" {
				message = res.Reason
			}
			return integration.ItemResult{
				Outcome:  res.Outcome,
				RemoteID: res.RemoteInvoiceID,
				Message:  message,
			}, nil
		})
}

func payAppIDs(apps []*billing.PayApplication) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	return ids
}
