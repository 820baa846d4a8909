package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCompanyRepository implements billing.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// FindByID finds a company by its ID
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Company, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByRemoteID finds the company linked to the remote party of kind.
// Customer and vendor ids are separate sequences, so the kind picks the column.
func (r *GormCompanyRepository) FindByRemoteID(ctx context.Context, kind integration.PartyKind, remoteID string) (*billing.Company, error) {
	if remoteID == "" {
		return nil, shared.ErrNotFound
	}
	switch kind {
	case integration.PartyKindCustomer:
		return r.first(ctx, "remote_customer_id = ?", remoteID)
	case integration.PartyKindVendor:
		return r.first(ctx, "remote_vendor_id = ?", remoteID)
	default:
		return nil, shared.ErrInvalidInput.WithMessage("unknown party kind: " + string(kind))
	}
}

// FindByName finds a company by name, ignoring case and surrounding spaces
func (r *GormCompanyRepository) FindByName(ctx context.Context, name string) (*billing.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(ctx, "LOWER(name) = LOWER(?)", name)
}

// Save creates or updates a company
func (r *GormCompanyRepository) Save(ctx context.Context, company *billing.Company) error {
	return r.db.WithContext(ctx).Save(models.CompanyModelFromDomain(company)).Error
}

func (r *GormCompanyRepository) first(ctx context.Context, query string, args ...any) (*billing.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormPartyResolver implements billing.PartyResolver over project_parties
type GormPartyResolver struct {
	db *gorm.DB
}

// NewGormPartyResolver creates a new GormPartyResolver
func NewGormPartyResolver(db *gorm.DB) *GormPartyResolver {
	return &GormPartyResolver{db: db}
}

// PrimaryCustomer returns the customer company of the project, preferring
// the one flagged primary
func (r *GormPartyResolver) PrimaryCustomer(ctx context.Context, projectID uuid.UUID) (*billing.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN project_parties ON project_parties.company_id = companies.id").
		Where("project_parties.project_id = ? AND project_parties.role = ?", projectID, string(billing.ProjectPartyRoleCustomer)).
		Order("project_parties.is_primary DESC").
		Order("project_parties.created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AddParty attaches a company to a project in a role
func (r *GormPartyResolver) AddParty(ctx context.Context, party billing.ProjectParty) error {
	return r.db.WithContext(ctx).Save(&models.ProjectPartyModel{
		ProjectID: party.ProjectID,
		CompanyID: party.CompanyID,
		Role:      string(party.Role),
		IsPrimary: party.IsPrimary,
		CreatedAt: time.Now(),
	}).Error
}

var (
	_ billing.CompanyRepository = (*GormCompanyRepository)(nil)
	_ billing.PartyResolver     = (*GormPartyResolver)(nil)
)
