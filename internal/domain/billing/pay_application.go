package billing

import (
	"fmt"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayApplication is one periodic progress billing of a project.
// Within a project SequenceNumber is gapless, and PreviousPayments equals
// the EarnedLessRetainage of the preceding pay application.
type PayApplication struct {
	shared.BaseEntity
	ProjectID                  uuid.UUID
	SequenceNumber             int
	PeriodEnd                  *time.Time
	Amount                     decimal.Decimal
	RetainageThisPeriod        decimal.Decimal
	RetainageOnStoredMaterials decimal.Decimal
	TotalRetainage             decimal.Decimal
	EarnedLessRetainage        decimal.Decimal
	PreviousPayments           decimal.Decimal
	CurrentPaymentDue          decimal.Decimal
	IsRetainageBilling         bool

	RemoteInvoiceID string
	SyncStatus      integration.SyncStatus
	SyncError       string
	SyncedAt        *time.Time

	PaymentTotal  decimal.Decimal
	PaymentStatus integration.PaymentStatus
	Deleted       bool
}

// NewPayApplication creates an unsynced pay application
func NewPayApplication(projectID uuid.UUID, sequence int, amount decimal.Decimal) *PayApplication {
	return &PayApplication{
		BaseEntity:     shared.NewBaseEntity(),
		ProjectID:      projectID,
		SequenceNumber: sequence,
		Amount:         amount,
		SyncStatus:     integration.SyncStatusNotSynced,
		PaymentStatus:  integration.PaymentStatusSubmitted,
	}
}

// Billable returns true if there is an amount to invoice
func (p *PayApplication) Billable() bool {
	return !p.CurrentPaymentDue.IsZero()
}

// HasRemoteInvoice returns true if an invoice id is stored
func (p *PayApplication) HasRemoteInvoice() bool {
	return p.RemoteInvoiceID != ""
}

// DocNumber is the remote invoice number, "<projectNumber>-<sequence>"
func (p *PayApplication) DocNumber(projectNumber string) string {
	return fmt.Sprintf("%s-%d", projectNumber, p.SequenceNumber)
}

// MarkSynced records a successful push
func (p *PayApplication) MarkSynced(remoteInvoiceID string, now time.Time) {
	p.RemoteInvoiceID = remoteInvoiceID
	p.SyncStatus = integration.SyncStatusSucceeded
	p.SyncError = ""
	synced := now
	p.SyncedAt = &synced
	p.Touch(now)
}

// MarkSyncFailed records a failed push with the error text
func (p *PayApplication) MarkSyncFailed(message string, now time.Time) {
	p.SyncStatus = integration.SyncStatusFailed
	p.SyncError = message
	p.Touch(now)
}

// ApplyPayments stores the amount collected against the invoice. The
// invoice balance decides Paid; anything received short of that is Partial.
func (p *PayApplication) ApplyPayments(total, balance decimal.Decimal, now time.Time) {
	p.PaymentTotal = valueobject.RoundCents(total)
	switch {
	case p.PaymentTotal.IsPositive() && !balance.IsPositive():
		p.PaymentStatus = integration.PaymentStatusPaid
	case p.PaymentTotal.IsPositive():
		p.PaymentStatus = integration.PaymentStatusPartial
	default:
		p.PaymentStatus = integration.PaymentStatusSubmitted
	}
	p.Touch(now)
}

// NormalizeAmounts rounds every stored money field to cents and reports
// whether anything changed
func (p *PayApplication) NormalizeAmounts() bool {
	changed := false
	for _, field := range []*decimal.Decimal{
		&p.Amount,
		&p.RetainageThisPeriod,
		&p.RetainageOnStoredMaterials,
		&p.TotalRetainage,
		&p.EarnedLessRetainage,
		&p.PreviousPayments,
		&p.CurrentPaymentDue,
		&p.PaymentTotal,
	} {
		rounded := valueobject.RoundCents(*field)
		if !rounded.Equal(*field) {
			*field = rounded
			changed = true
		}
	}
	return changed
}

// Sequenced implementation

func (p *PayApplication) GroupID() uuid.UUID { return p.ProjectID }
func (p *PayApplication) Created() time.Time { return p.CreatedAt }
func (p *PayApplication) Sequence() int { return p.SequenceNumber }
func (p *PayApplication) SetSequence(seq int) { p.SequenceNumber = seq }
func (p *PayApplication) RecordID() uuid.UUID { return p.ID }
