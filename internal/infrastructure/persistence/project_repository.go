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

// GormProjectRepository implements billing.ProjectRepository using GORM
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GormProjectRepository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by its ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	var model models.ProjectModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRemoteJobID finds the project linked to a remote job
func (r *GormProjectRepository) FindByRemoteJobID(ctx context.Context, remoteJobID string) (*billing.Project, error) {
	if remoteJobID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.ProjectModel
	if err := r.db.WithContext(ctx).
		Where("remote_job_id = ?", remoteJobID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns active projects ordered by number
func (r *GormProjectRepository) FindActive(ctx context.Context) ([]*billing.Project, error) {
	var rows []models.ProjectModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return projectsToDomain(rows), nil
}

// FindLinked returns projects that carry a remote job id
func (r *GormProjectRepository) FindLinked(ctx context.Context) ([]*billing.Project, error) {
	var rows []models.ProjectModel
	if err := r.db.WithContext(ctx).
		Where("remote_job_id <> ?", "").
		Order("number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return projectsToDomain(rows), nil
}

// Save creates or updates a project
func (r *GormProjectRepository) Save(ctx context.Context, project *billing.Project) error {
	return r.db.WithContext(ctx).Save(models.ProjectModelFromDomain(project)).Error
}

func projectsToDomain(rows []models.ProjectModel) []*billing.Project {
	projects := make([]*billing.Project, len(rows))
	for i := range rows {
		projects[i] = rows[i].ToDomain()
	}
	return projects
}

var _ billing.ProjectRepository = (*GormProjectRepository)(nil)
