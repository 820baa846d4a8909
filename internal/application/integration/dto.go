package integration

import (
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// SyncProjectsRequest represents a request to sync several projects
type SyncProjectsRequest struct {
	ProjectIDs []uuid.UUID `json:"project_ids" validate:"required,min=1,max=200"`
}

// SyncCompanyRequest represents a request to sync a company in one role
type SyncCompanyRequest struct {
	Role string `json:"role" validate:"required,oneof=customer vendor subcontractor"`
}

// AuthorizeRequest represents the optional scopes of a connect request
type AuthorizeRequest struct {
	Scopes []string `form:"scope"`
}

// CallbackRequest represents the query of the authorization callback
type CallbackRequest struct {
	Code    string `form:"code" validate:"required"`
	State   string `form:"state" validate:"required"`
	RealmID string `form:"realmId" validate:"required"`
}

// CostQuery represents the date range filter of cost queries
type CostQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// ToDateRange parses the query into a date range; empty bounds default to
// all time
func (q CostQuery) ToDateRange() (costing.DateRange, error) {
	return costing.ParseDateRange(q.StartDate, q.EndDate)
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// BatchItemResponse is one item of a batch response
type BatchItemResponse struct {
	ID       string `json:"id"`
	Outcome  string `json:"outcome"`
	Action   string `json:"action,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BatchResponse is the response of every batch operation
type BatchResponse struct {
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
	SkippedCount int                 `json:"skipped_count"`
	Items        []BatchItemResponse `json:"items"`
	Aborted      string              `json:"aborted,omitempty"`
}

// PayApplicationResponse represents the sync state of a pay application
type PayApplicationResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	ProjectID          uuid.UUID                 `json:"project_id"`
	SequenceNumber     int                       `json:"sequence_number"`
	CurrentPaymentDue  decimal.Decimal           `json:"current_payment_due"`
	PreviousPayments   decimal.Decimal           `json:"previous_payments"`
	IsRetainageBilling bool                      `json:"is_retainage_billing"`
	RemoteInvoiceID    string                    `json:"remote_invoice_id,omitempty"`
	SyncStatus         integration.SyncStatus    `json:"sync_status"`
	SyncError          string                    `json:"sync_error,omitempty"`
	SyncedAt           *time.Time                `json:"synced_at,omitempty"`
	PaymentTotal       decimal.Decimal           `json:"payment_total"`
	PaymentStatus      integration.PaymentStatus `json:"payment_status"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Conversion functions
// ---------------------------------------------------------------------------

// ToBatchResponse converts a domain BatchResult to a response DTO
func ToBatchResponse(r *integration.BatchResult) BatchResponse {
	if r == nil {
		return BatchResponse{Items: []BatchItemResponse{}}
	}
	items := make([]BatchItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = BatchItemResponse{
			ID:       item.ID,
			Outcome:  string(item.Outcome),
			Action:   string(item.Action),
			RemoteID: item.RemoteID,
			Message:  item.Message,
		}
	}
	return BatchResponse{
		SuccessCount: r.SuccessCount,
		ErrorCount:   r.ErrorCount,
		SkippedCount: r.SkippedCount,
		Items:        items,
		Aborted:      r.Aborted,
	}
}

// ToPayApplicationResponse converts a domain PayApplication to a response DTO
func ToPayApplicationResponse(p *billing.PayApplication) PayApplicationResponse {
	return PayApplicationResponse{
		ID:                 p.ID,
		ProjectID:          p.ProjectID,
		SequenceNumber:     p.SequenceNumber,
		CurrentPaymentDue:  p.CurrentPaymentDue,
		PreviousPayments:   p.PreviousPayments,
		IsRetainageBilling: p.IsRetainageBilling,
		RemoteInvoiceID:    p.RemoteInvoiceID,
		SyncStatus:         p.SyncStatus,
		SyncError:          p.SyncError,
		SyncedAt:           p.SyncedAt,
		PaymentTotal:       p.PaymentTotal,
		PaymentStatus:      p.PaymentStatus,
		UpdatedAt:          p.UpdatedAt,
	}
}
