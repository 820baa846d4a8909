package models

import (
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Project
// ---------------------------------------------------------------------------

// ProjectModel is the persistence model for billing.Project
type ProjectModel struct {
	BaseModel
	Number           string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string     `gorm:"type:varchar(255);not null"`
	RemoteCustomerID string     `gorm:"type:varchar(64);not null;default:''"`
	RemoteJobID      string     `gorm:"type:varchar(64);not null;default:'';index"`
	LastSyncedAt     *time.Time `gorm:"default:null"`
	Active           bool       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProjectModel) TableName() string {
	return "projects"
}

// ToDomain converts the model to a domain project
func (m *ProjectModel) ToDomain() *billing.Project {
	return &billing.Project{
		BaseEntity:       m.BaseModel.Entity(),
		Number:           m.Number,
		Name:             m.Name,
		RemoteCustomerID: m.RemoteCustomerID,
		RemoteJobID:      m.RemoteJobID,
		LastSyncedAt:     m.LastSyncedAt,
		Active:           m.Active,
	}
}

// ProjectModelFromDomain creates a model from a domain project
func ProjectModelFromDomain(p *billing.Project) *ProjectModel {
	m := &ProjectModel{
		Number:           p.Number,
		Name:             p.Name,
		RemoteCustomerID: p.RemoteCustomerID,
		RemoteJobID:      p.RemoteJobID,
		LastSyncedAt:     p.LastSyncedAt,
		Active:           p.Active,
	}
	m.SetEntity(p.BaseEntity)
	return m
}

// ---------------------------------------------------------------------------
// Company
// ---------------------------------------------------------------------------

// CompanyModel is the persistence model for billing.Company
type CompanyModel struct {
	BaseModel
	Name             string     `gorm:"type:varchar(255);not null;index"`
	Email            string     `gorm:"type:varchar(255)"`
	Phone            string     `gorm:"type:varchar(50)"`
	RemoteCustomerID string     `gorm:"type:varchar(64);not null;default:'';index"`
	RemoteVendorID   string     `gorm:"type:varchar(64);not null;default:'';index"`
	IsCustomer       bool       `gorm:"not null"`
	IsVendor         bool       `gorm:"not null"`
	IsSubcontractor  bool       `gorm:"not null"`
	LastSyncedAt     *time.Time `gorm:"default:null"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the model to a domain company
func (m *CompanyModel) ToDomain() *billing.Company {
	return &billing.Company{
		BaseEntity:       m.BaseModel.Entity(),
		Name:             m.Name,
		Email:            m.Email,
		Phone:            m.Phone,
		RemoteCustomerID: m.RemoteCustomerID,
		RemoteVendorID:   m.RemoteVendorID,
		IsCustomer:       m.IsCustomer,
		IsVendor:         m.IsVendor,
		IsSubcontractor:  m.IsSubcontractor,
		LastSyncedAt:     m.LastSyncedAt,
	}
}

// CompanyModelFromDomain creates a model from a domain company
func CompanyModelFromDomain(c *billing.Company) *CompanyModel {
	m := &CompanyModel{
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		RemoteCustomerID: c.RemoteCustomerID,
		RemoteVendorID:   c.RemoteVendorID,
		IsCustomer:       c.IsCustomer,
		IsVendor:         c.IsVendor,
		IsSubcontractor:  c.IsSubcontractor,
		LastSyncedAt:     c.LastSyncedAt,
	}
	m.SetEntity(c.BaseEntity)
	return m
}

// ProjectPartyModel links a company to a project in a role
type ProjectPartyModel struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role      string    `gorm:"type:varchar(32);primaryKey"`
	IsPrimary bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProjectPartyModel) TableName() string {
	return "project_parties"
}

// ---------------------------------------------------------------------------
// Pay application
// ---------------------------------------------------------------------------

// PayApplicationModel is the persistence model for billing.PayApplication
type PayApplicationModel struct {
	BaseModel
	ProjectID                  uuid.UUID       `gorm:"type:uuid;not null;index:idx_pay_applications_project_seq,priority:1"`
	SequenceNumber             int             `gorm:"not null;index:idx_pay_applications_project_seq,priority:2"`
	PeriodEnd                  *time.Time      `gorm:"type:date"`
	Amount                     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RetainageThisPeriod        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RetainageOnStoredMaterials decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TotalRetainage             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	EarnedLessRetainage        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	PreviousPayments           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CurrentPaymentDue          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	IsRetainageBilling         bool            `gorm:"not null"`
	RemoteInvoiceID            string          `gorm:"type:varchar(64);not null;default:''"`
	SyncStatus                 string          `gorm:"type:varchar(20);not null"`
	SyncError                  string          `gorm:"type:text"`
	SyncedAt                   *time.Time      `gorm:"default:null"`
	PaymentTotal               decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	PaymentStatus              string          `gorm:"type:varchar(20);not null"`
	Deleted                    bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PayApplicationModel) TableName() string {
	return "pay_applications"
}

// ToDomain converts the model to a domain pay application
func (m *PayApplicationModel) ToDomain() *billing.PayApplication {
	return &billing.PayApplication{
		BaseEntity:                 m.BaseModel.Entity(),
		ProjectID:                  m.ProjectID,
		SequenceNumber:             m.SequenceNumber,
		PeriodEnd:                  m.PeriodEnd,
		Amount:                     m.Amount,
		RetainageThisPeriod:        m.RetainageThisPeriod,
		RetainageOnStoredMaterials: m.RetainageOnStoredMaterials,
		TotalRetainage:             m.TotalRetainage,
		EarnedLessRetainage:        m.EarnedLessRetainage,
		PreviousPayments:           m.PreviousPayments,
		CurrentPaymentDue:          m.CurrentPaymentDue,
		IsRetainageBilling:         m.IsRetainageBilling,
		RemoteInvoiceID:            m.RemoteInvoiceID,
		SyncStatus:                 integration.SyncStatus(m.SyncStatus),
		SyncError:                  m.SyncError,
		SyncedAt:                   m.SyncedAt,
		PaymentTotal:               m.PaymentTotal,
		PaymentStatus:              integration.PaymentStatus(m.PaymentStatus),
		Deleted:                    m.Deleted,
	}
}

// PayApplicationModelFromDomain creates a model from a domain pay application
func PayApplicationModelFromDomain(a *billing.PayApplication) *PayApplicationModel {
	m := &PayApplicationModel{
		ProjectID:                  a.ProjectID,
		SequenceNumber:             a.SequenceNumber,
		PeriodEnd:                  a.PeriodEnd,
		Amount:                     a.Amount,
		RetainageThisPeriod:        a.RetainageThisPeriod,
		RetainageOnStoredMaterials: a.RetainageOnStoredMaterials,
		TotalRetainage:             a.TotalRetainage,
		EarnedLessRetainage:        a.EarnedLessRetainage,
		PreviousPayments:           a.PreviousPayments,
		CurrentPaymentDue:          a.CurrentPaymentDue,
		IsRetainageBilling:         a.IsRetainageBilling,
		RemoteInvoiceID:            a.RemoteInvoiceID,
		SyncStatus:                 string(a.SyncStatus),
		SyncError:                  a.SyncError,
		SyncedAt:                   a.SyncedAt,
		PaymentTotal:               a.PaymentTotal,
		PaymentStatus:              string(a.PaymentStatus),
		Deleted:                    a.Deleted,
	}
	m.SetEntity(a.BaseEntity)
	return m
}

// ---------------------------------------------------------------------------
// Change order
// ---------------------------------------------------------------------------

// ChangeOrderModel is the persistence model for billing.ChangeOrder
type ChangeOrderModel struct {
	BaseModel
	ProjectID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	SequenceNumber int             `gorm:"not null"`
	Description    string          `gorm:"type:text"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	BudgetAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Deleted        bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChangeOrderModel) TableName() string {
	return "change_orders"
}

// ToDomain converts the model to a domain change order
func (m *ChangeOrderModel) ToDomain() *billing.ChangeOrder {
	return &billing.ChangeOrder{
		BaseEntity:     m.BaseModel.Entity(),
		ProjectID:      m.ProjectID,
		SequenceNumber: m.SequenceNumber,
		Description:    m.Description,
		Amount:         m.Amount,
		BudgetAmount:   m.BudgetAmount,
		Deleted:        m.Deleted,
	}
}

// ChangeOrderModelFromDomain creates a model from a domain change order
func ChangeOrderModelFromDomain(o *billing.ChangeOrder) *ChangeOrderModel {
	m := &ChangeOrderModel{
		ProjectID:      o.ProjectID,
		SequenceNumber: o.SequenceNumber,
		Description:    o.Description,
		Amount:         o.Amount,
		BudgetAmount:   o.BudgetAmount,
		Deleted:        o.Deleted,
	}
	m.SetEntity(o.BaseEntity)
	return m
}
