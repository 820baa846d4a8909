package persistence

import (
	"context"
	"errors"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPayApplicationRepository implements billing.PayApplicationRepository using GORM
type GormPayApplicationRepository struct {
	db *gorm.DB
}

// NewGormPayApplicationRepository creates a new GormPayApplicationRepository
func NewGormPayApplicationRepository(db *gorm.DB) *GormPayApplicationRepository {
	return &GormPayApplicationRepository{db: db}
}

// FindByID finds a pay application by its ID, deleted ones included
func (r *GormPayApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PayApplication, error) {
	var model models.PayApplicationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProject returns the live pay applications of a project by sequence
func (r *GormPayApplicationRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.PayApplication, error) {
	var rows []models.PayApplicationModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND deleted = ?", projectID, false).
		Order("sequence_number ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return payApplicationsToDomain(rows), nil
}

// FindAllByProject returns every pay application of a project, deleted ones
// included, in creation order
func (r *GormPayApplicationRepository) FindAllByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.PayApplication, error) {
	var rows []models.PayApplicationModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return payApplicationsToDomain(rows), nil
}

// FindWithRemoteInvoice returns live pay applications that have a remote invoice
func (r *GormPayApplicationRepository) FindWithRemoteInvoice(ctx context.Context) ([]*billing.PayApplication, error) {
	var rows []models.PayApplicationModel
	if err := r.db.WithContext(ctx).
		Where("deleted = ? AND remote_invoice_id <> ?", false, "").
		Order("project_id ASC").
		Order("sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return payApplicationsToDomain(rows), nil
}

// Save creates or updates a pay application
func (r *GormPayApplicationRepository) Save(ctx context.Context, app *billing.PayApplication) error {
	return r.db.WithContext(ctx).Save(models.PayApplicationModelFromDomain(app)).Error
}

// SaveAll writes every pay application in one transaction
func (r *GormPayApplicationRepository) SaveAll(ctx context.Context, apps []*billing.PayApplication) error {
	if len(apps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, app := range apps {
			if err := tx.Save(models.PayApplicationModelFromDomain(app)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ProjectIDsWithPayApplications lists the projects owning live pay applications
func (r *GormPayApplicationRepository) ProjectIDsWithPayApplications(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PayApplicationModel{}).
		Where("deleted = ?", false).
		Distinct("project_id").
		Order("project_id ASC").
		Pluck("project_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func payApplicationsToDomain(rows []models.PayApplicationModel) []*billing.PayApplication {
	apps := make([]*billing.PayApplication, len(rows))
	for i := range rows {
		apps[i] = rows[i].ToDomain()
	}
	return apps
}

var (
	_ billing.PayApplicationRepository = (*GormPayApplicationRepository)(nil)
	_ billing.ProjectIDLister          = (*GormPayApplicationRepository)(nil)
)
