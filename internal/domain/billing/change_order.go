package billing

import (
	"time"

	"github.com/flocon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeOrder amends a project's contract. Numbers follow creation order;
// soft-deleted change orders keep theirs.
type ChangeOrder struct {
	shared.BaseEntity
	ProjectID      uuid.UUID
	SequenceNumber int
	Description    string
	Amount         decimal.Decimal
	BudgetAmount   decimal.Decimal
	Deleted        bool
}

// NewChangeOrder creates an unnumbered change order
func NewChangeOrder(projectID uuid.UUID, description string, amount decimal.Decimal) *ChangeOrder {
	return &ChangeOrder{
		BaseEntity:  shared.NewBaseEntity(),
		ProjectID:   projectID,
		Description: description,
		Amount:      amount,
	}
}

func (c *ChangeOrder) GroupID() uuid.UUID { return c.ProjectID }
func (c *ChangeOrder) Created() time.Time { return c.CreatedAt }
func (c *ChangeOrder) Sequence() int { return c.SequenceNumber }
func (c *ChangeOrder) SetSequence(seq int) { c.SequenceNumber = seq }
func (c *ChangeOrder) RecordID() uuid.UUID { return c.ID }
