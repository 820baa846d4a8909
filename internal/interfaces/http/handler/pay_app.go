package handler

import (
	"context"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceSyncService pushes pay applications and pulls their payments
type InvoiceSyncService interface {
	SyncPayApp(ctx context.Context, payAppID uuid.UUID) (*appintegration.InvoiceSyncResult, error)
	SyncProjectPayApps(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error)
	PullPayment(ctx context.Context, payAppID uuid.UUID) (*appintegration.PaymentPullResult, error)
	PullProjectPayments(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error)
}

// PayAppHandler handles pay application invoicing
type PayAppHandler struct {
	BaseHandler
	service InvoiceSyncService
}

// NewPayAppHandler creates a new pay application handler
func NewPayAppHandler(service InvoiceSyncService) *PayAppHandler {
	return &PayAppHandler{service: service}
}

// SyncPayApp godoc
// @ID           syncPayApp
// @Summary      Invoice one pay application
// @Description  Creates the invoice for the pay application's current payment due. A zero amount is skipped.
// @Tags         pay-apps
// @Produce      json
// @Param        id path string true "Pay application ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.InvoiceSyncResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /pay-apps/{id}/sync [post]
func (h *PayAppHandler) SyncPayApp(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "pay application")
	if !ok {
		return
	}

	result, err := h.service.SyncPayApp(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// PullPayment godoc
// @ID           pullPayAppPayment
// @Summary      Refresh the payment state of one pay application
// @Tags         pay-apps
// @Produce      json
// @Param        id path string true "Pay application ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.PaymentPullResult]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /pay-apps/{id}/pull-payment [post]
func (h *PayAppHandler) PullPayment(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "pay application")
	if !ok {
		return
	}

	result, err := h.service.PullPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SyncProjectPayApps godoc
// @ID           syncProjectPayApps
// @Summary      Invoice every pending pay application of a project
// @Tags         pay-apps
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /projects/{id}/pay-apps/sync [post]
func (h *PayAppHandler) SyncProjectPayApps(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}
	h.batch(c, func(ctx context.Context) (*integration.BatchResult, error) {
		return h.service.SyncProjectPayApps(ctx, id)
	})
}

// PullProjectPayments godoc
// @ID           pullProjectPayments
// @Summary      Refresh payments of every invoiced pay application of a project
// @Tags         pay-apps
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /projects/{id}/payments/pull [post]
func (h *PayAppHandler) PullProjectPayments(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}
	h.batch(c, func(ctx context.Context) (*integration.BatchResult, error) {
		return h.service.PullProjectPayments(ctx, id)
	})
}
