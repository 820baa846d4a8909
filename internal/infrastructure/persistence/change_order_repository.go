package persistence

import (
	"context"

	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormChangeOrderRepository implements billing.ChangeOrderRepository using GORM
type GormChangeOrderRepository struct {
	db *gorm.DB
}

// NewGormChangeOrderRepository creates a new GormChangeOrderRepository
func NewGormChangeOrderRepository(db *gorm.DB) *GormChangeOrderRepository {
	return &GormChangeOrderRepository{db: db}
}

// FindByProject returns every change order of a project in creation order
func (r *GormChangeOrderRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.ChangeOrder, error) {
	var rows []models.ChangeOrderModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]*billing.ChangeOrder, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

// SaveAll writes every change order in one transaction
func (r *GormChangeOrderRepository) SaveAll(ctx context.Context, orders []*billing.ChangeOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if err := tx.Save(models.ChangeOrderModelFromDomain(order)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var _ billing.ChangeOrderRepository = (*GormChangeOrderRepository)(nil)
