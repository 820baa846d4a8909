package persistence

import (
	"context"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormBillingTransactionScope runs billing repository work in one database transaction
type GormBillingTransactionScope struct {
	db *gorm.DB
}

// NewGormBillingTransactionScope creates a new GormBillingTransactionScope
func NewGormBillingTransactionScope(db *gorm.DB) *GormBillingTransactionScope {
	return &GormBillingTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn rolls
// the transaction back.
func (s *GormBillingTransactionScope) Execute(ctx context.Context, fn func(repos appintegration.BillingRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormBillingRepositories{tx: tx})
	})
}

// gormBillingRepositories hands out repositories bound to the transaction
type gormBillingRepositories struct {
	tx *gorm.DB
}

func (r *gormBillingRepositories) PayApplications() billing.PayApplicationRepository {
	return NewGormPayApplicationRepository(r.tx)
}

func (r *gormBillingRepositories) ChangeOrders() billing.ChangeOrderRepository {
	return NewGormChangeOrderRepository(r.tx)
}

var (
	_ appintegration.BillingTransactionScope = (*GormBillingTransactionScope)(nil)
	_ appintegration.BillingRepositories     = (*gormBillingRepositories)(nil)
)
