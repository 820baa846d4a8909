package handler

import (
	"context"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProjectSyncService pushes projects and companies to the accounting system
type ProjectSyncService interface {
	SyncProject(ctx context.Context, projectID uuid.UUID) (*appintegration.ProjectSyncResult, error)
	SyncProjects(ctx context.Context, ids []uuid.UUID) (*integration.BatchResult, error)
	SyncAllProjects(ctx context.Context) (*integration.BatchResult, error)
	SyncCompany(ctx context.Context, companyID uuid.UUID, role billing.CompanyRole) (*appintegration.CompanySyncResult, error)
	PullVendors(ctx context.Context) (*integration.BatchResult, error)
	PullSubcontractors(ctx context.Context) (*integration.BatchResult, error)
	PullCustomers(ctx context.Context) (*integration.BatchResult, error)
}

// SyncHandler handles on-demand project and company sync
type SyncHandler struct {
	BaseHandler
	service ProjectSyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service ProjectSyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncProject godoc
// @ID           syncProject
// @Summary      Sync one project
// @Description  Ensures the project's customer and job exist remotely and links them
// @Tags         sync
// @Produce      json
// @Param        id path string true "Project ID" format(uuid)
// @Success      200 {object} APIResponse[appintegration.ProjectSyncResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /sync/projects/{id} [post]
func (h *SyncHandler) SyncProject(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	result, err := h.service.SyncProject(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SyncProjects godoc
// @ID           syncProjects
// @Summary      Sync a list of projects
// @Description  Each project is synced independently; failures are reported per item
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body appintegration.SyncProjectsRequest true "Project IDs"
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync/projects [post]
func (h *SyncHandler) SyncProjects(c *gin.Context) {
	var req appintegration.SyncProjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	h.batch(c, func(ctx context.Context) (*integration.BatchResult, error) {
		return h.service.SyncProjects(ctx, req.ProjectIDs)
	})
}

// SyncAllProjects godoc
// @ID           syncAllProjects
// @Summary      Sync every active project
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Failure      401 {object} ErrorResponse
// @Router       /sync/projects/all [post]
func (h *SyncHandler) SyncAllProjects(c *gin.Context) {
	h.batch(c, h.service.SyncAllProjects)
}

// SyncCompany godoc
// @ID           syncCompany
// @Summary      Sync one company in a role
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        id      path string true "Company ID" format(uuid)
// @Param        request body appintegration.SyncCompanyRequest true "Role"
// @Success      200 {object} APIResponse[appintegration.CompanySyncResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /sync/companies/{id} [post]
func (h *SyncHandler) SyncCompany(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "company")
	if !ok {
		return
	}
	var req appintegration.SyncCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.SyncCompany(c.Request.Context(), id, billing.CompanyRole(req.Role))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// PullVendors godoc
// @ID           pullVendors
// @Summary      Link local vendors to remote vendors
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /sync/vendors/pull [post]
func (h *SyncHandler) PullVendors(c *gin.Context) {
	h.batch(c, h.service.PullVendors)
}

// PullSubcontractors godoc
// @ID           pullSubcontractors
// @Summary      Link local subcontractors to remote vendors
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /sync/subcontractors/pull [post]
func (h *SyncHandler) PullSubcontractors(c *gin.Context) {
	h.batch(c, h.service.PullSubcontractors)
}

// PullCustomers godoc
// @ID           pullCustomers
// @Summary      Import remote customers, excluding jobs
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.BatchResponse]
// @Router       /sync/customers/pull [post]
func (h *SyncHandler) PullCustomers(c *gin.Context) {
	h.batch(c, h.service.PullCustomers)
}

// batch runs a batch operation and writes its per-item result. A batch
// that aborted still answers 200 with the partial counts.
func (h *BaseHandler) batch(c *gin.Context, run func(ctx context.Context) (*integration.BatchResult, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToBatchResponse(result))
}
