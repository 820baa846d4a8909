package handler

import (
	"context"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingService re-establishes the billing invariants of local data
type BillingService interface {
	RecomputeProject(ctx context.Context, projectID uuid.UUID) (*appintegration.RecomputeResult, error)
	RecomputeAll(ctx context.Context) (*integration.BatchResult, error)
	RenumberChangeOrders(ctx context.Context, projectID uuid.UUID) (*appintegration.RenumberResult, error)
}

// BillingHandler handles billing recomputation
type BillingHandler struct {
	BaseHandler
	service BillingService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(service BillingService) *BillingHandler {
	return &BillingHandler{service: service}
}

// RecomputeProject godoc
// @ID           recomputeProjectBilling
// @Summary      Recompute a project's pay applications
// @Description  Rounds amounts, renumbers change orders, recomputes payment deltas and retainage flags
// @Tags         billing
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.RecomputeResult]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /projects/{id}/billing/recompute [post]
func (h *BillingHandler) RecomputeProject(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	result, err := h.service.RecomputeProject(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RecomputeAll godoc
// @ID           recomputeAllBilling
// @Summary      Recompute every active project
// @Tags         billing
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /billing/recompute [post]
func (h *BillingHandler) RecomputeAll(c *gin.Context) {
	h.batch(c, h.service.RecomputeAll)
}

// RenumberChangeOrders godoc
// @ID           renumberChangeOrders
// @Summary      Renumber a project's change orders by creation time
// @Tags         billing
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.RenumberResult]
// @Router       /projects/{id}/change-orders/renumber [post]
func (h *BillingHandler) RenumberChangeOrders(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	result, err := h.service.RenumberChangeOrders(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
