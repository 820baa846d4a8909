package integration

import (
	"context"
	"time"

	"github.com/flocon/backend/internal/domain/costing"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Remote records
// ---------------------------------------------------------------------------

// PartyKind is the remote subtype a local company is stored as
type PartyKind string

const (
	// PartyKindCustomer is a remote customer (billing parent of jobs)
	PartyKindCustomer PartyKind = "customer"
	// PartyKindVendor is a remote vendor; subcontractors are 1099 vendors
	PartyKindVendor PartyKind = "vendor"
)

// IsValid returns true if the kind is known
func (k PartyKind) IsValid() bool {
	return k == PartyKindCustomer || k == PartyKindVendor
}

// BillingParent is a remote party: the customer jobs are billed under, or a
// vendor. SyncToken is the remote optimistic-lock token required on update.
type BillingParent struct {
	ID          string
	SyncToken   string
	Kind        PartyKind
	DisplayName string
	CompanyName string
	Email       string
	Phone       string
	Is1099      bool
	Active      bool
}

// BillingChild is a remote job nested under a billing parent
type BillingChild struct {
	ID             string
	SyncToken      string
	ParentID       string
	DisplayName    string
	BillWithParent bool
	Active         bool
}

// InvoiceLine is one sales line of a remote invoice
type InvoiceLine struct {
	Amount      decimal.Decimal
	Description string
	ItemID      string
}

// RemoteInvoice is an invoice in the remote ledger
type RemoteInvoice struct {
	ID          string
	SyncToken   string
	DocNumber   string
	CustomerID  string
	TxnDate     time.Time
	Lines       []InvoiceLine
	TotalAmount decimal.Decimal
	Balance     decimal.Decimal
}

// PaymentApplication is the part of a payment applied to one invoice
type PaymentApplication struct {
	InvoiceID string
	Amount    decimal.Decimal
}

// RemotePayment is a received payment
type RemotePayment struct {
	ID          string
	CustomerID  string
	TxnDate     time.Time
	TotalAmount decimal.Decimal
	Applied     []PaymentApplication
}

// AppliedTo returns the amount of the payment applied to invoiceID
func (p RemotePayment) AppliedTo(invoiceID string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Applied {
		if a.InvoiceID == invoiceID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// RemoteItem is a product/service item
type RemoteItem struct {
	ID              string
	Name            string
	IncomeAccountID string
}

// RemoteAccount is a chart-of-accounts entry
type RemoteAccount struct {
	ID             string
	Name           string
	AccountType    string
	AccountSubType string
}

// ---------------------------------------------------------------------------
// Gateways (ports implemented by the accounting adapter)
// ---------------------------------------------------------------------------

// PartyGateway reads and writes remote customers and vendors
type PartyGateway interface {
	GetParty(ctx context.Context, realmID string, kind PartyKind, id string) (*BillingParent, error)
	// FindPartiesByName returns parties whose display name matches name, active or not
	FindPartiesByName(ctx context.Context, realmID string, kind PartyKind, name string) ([]BillingParent, error)
	CreateParty(ctx context.Context, realmID string, party BillingParent) (*BillingParent, error)
	UpdateParty(ctx context.Context, realmID string, party BillingParent) (*BillingParent, error)
	// ListVendors returns active vendors; onlyContractors limits to 1099 vendors
	ListVendors(ctx context.Context, realmID string, onlyContractors bool) ([]BillingParent, error)
	// ListCustomers returns active top-level customers; jobs are excluded
	ListCustomers(ctx context.Context, realmID string) ([]BillingParent, error)
}

// JobGateway reads and writes remote jobs
type JobGateway interface {
	GetJob(ctx context.Context, realmID string, id string) (*BillingChild, error)
	// FindJobsByPrefix returns jobs whose display name starts with prefix, active or not
	FindJobsByPrefix(ctx context.Context, realmID string, prefix string) ([]BillingChild, error)
	CreateJob(ctx context.Context, realmID string, job BillingChild) (*BillingChild, error)
	UpdateJob(ctx context.Context, realmID string, job BillingChild) (*BillingChild, error)
}

// InvoiceGateway reads and writes invoices and the catalog they reference
type InvoiceGateway interface {
	GetInvoice(ctx context.Context, realmID string, id string) (*RemoteInvoice, error)
	// FindInvoiceByDocNumber returns nil, nil when no invoice carries docNumber
	FindInvoiceByDocNumber(ctx context.Context, realmID string, docNumber string) (*RemoteInvoice, error)
	CreateInvoice(ctx context.Context, realmID string, invoice RemoteInvoice) (*RemoteInvoice, error)
	UpdateInvoice(ctx context.Context, realmID string, invoice RemoteInvoice) (*RemoteInvoice, error)

	// FindItemByName returns nil, nil when the item does not exist
	FindItemByName(ctx context.Context, realmID string, name string) (*RemoteItem, error)
	CreateServiceItem(ctx context.Context, realmID string, name string, incomeAccountID string) (*RemoteItem, error)
	// FindIncomeAccount returns the first income account with subType, or any
	// income account when subType is empty; nil, nil when none exists
	FindIncomeAccount(ctx context.Context, realmID string, subType string) (*RemoteAccount, error)

	ListPaymentsForCustomer(ctx context.Context, realmID string, customerID string) ([]RemotePayment, error)
}

// ReportQuery selects a financial report
type ReportQuery struct {
	JobID string
	Range costing.DateRange
	Basis costing.AccountingBasis
}

// FetchedReport is a parsed report plus the raw payload it was parsed from
type FetchedReport struct {
	Report  *costing.Report
	Payload []byte
}

// ReportGateway fetches hierarchical financial reports
type ReportGateway interface {
	GeneralLedger(ctx context.Context, realmID string, query ReportQuery) (*FetchedReport, error)
	ProfitAndLoss(ctx context.Context, realmID string, query ReportQuery) (*FetchedReport, error)
}
