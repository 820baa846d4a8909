package handler

import (
	"context"
	"time"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CostService computes job costs from accounting reports
type CostService interface {
	ProjectCost(ctx context.Context, projectID uuid.UUID, dateRange costing.DateRange) (*appintegration.CostSummary, error)
	JobCost(ctx context.Context, jobID string, dateRange costing.DateRange) (*appintegration.CostSummary, error)
	ProfitAndLoss(ctx context.Context, jobID string, dateRange costing.DateRange) (*appintegration.ProfitAndLossSummary, error)
}

// ArchivePresigner issues temporary download links for archived reports
type ArchivePresigner interface {
	PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// ArchiveLink points at the raw report a figure was computed from
type ArchiveLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CostResponse is a cost summary with an optional archive link
type CostResponse struct {
	*appintegration.CostSummary
	Archive *ArchiveLink `json:"archive,omitempty"`
}

// ProfitAndLossResponse is a P&L summary with an optional archive link
type ProfitAndLossResponse struct {
	*appintegration.ProfitAndLossSummary
	Archive *ArchiveLink `json:"archive,omitempty"`
}

// CostHandler handles job costing queries
type CostHandler struct {
	BaseHandler
	service   CostService
	presigner ArchivePresigner
	linkTTL   time.Duration
}

// CostHandlerOption configures a CostHandler
type CostHandlerOption func(*CostHandler)

// WithArchivePresigner adds download links of the archived raw reports
func WithArchivePresigner(p ArchivePresigner, ttl time.Duration) CostHandlerOption {
	return func(h *CostHandler) {
		h.presigner = p
		if ttl > 0 {
			h.linkTTL = ttl
		}
	}
}

// NewCostHandler creates a new cost handler
func NewCostHandler(service CostService, opts ...CostHandlerOption) *CostHandler {
	h := &CostHandler{service: service, linkTTL: 15 * time.Minute}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ProjectCost godoc
// @ID           getProjectCost
// @Summary      Net cost of a project's job
// @Description  Sums the job's cost lines from the transaction report and adds payroll from time activities
// @Tags         costs
// @Produce      json
// @Param        id         path  string true  "Project ID" format(uuid)
// @Param        start_date query string false "Start date (YYYY-MM-DD)"
// @Param        end_date   query string false "End date (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[CostResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /projects/{id}/costs [get]
func (h *CostHandler) ProjectCost(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}
	dateRange, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.service.ProjectCost(c.Request.Context(), id, dateRange)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CostResponse{CostSummary: summary, Archive: h.archiveLink(c, summary.ArchiveKey)})
}

// JobCost godoc
// @ID           getJobCost
// @Summary      Net cost of a remote job
// @Tags         costs
// @Produce      json
// @Param        jobId      path  string true  "Remote job ID"
// @Param        start_date query string false "Start date (YYYY-MM-DD)"
// @Param        end_date   query string false "End date (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[CostResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /costs/jobs/{jobId} [get]
func (h *CostHandler) JobCost(c *gin.Context) {
	dateRange, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.service.JobCost(c.Request.Context(), c.Param("jobId"), dateRange)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CostResponse{CostSummary: summary, Archive: h.archiveLink(c, summary.ArchiveKey)})
}

// ProfitAndLoss godoc
// @ID           getJobProfitAndLoss
// @Summary      Profit and loss of a remote job
// @Tags         costs
// @Produce      json
// @Param        jobId      path  string true  "Remote job ID"
// @Param        start_date query string false "Start date (YYYY-MM-DD)"
// @Param        end_date   query string false "End date (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[ProfitAndLossResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /costs/jobs/{jobId}/profit-loss [get]
func (h *CostHandler) ProfitAndLoss(c *gin.Context) {
	dateRange, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.service.ProfitAndLoss(c.Request.Context(), c.Param("jobId"), dateRange)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ProfitAndLossResponse{ProfitAndLossSummary: summary, Archive: h.archiveLink(c, summary.ArchiveKey)})
}

func (h *CostHandler) dateRange(c *gin.Context) (costing.DateRange, bool) {
	var q appintegration.CostQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return costing.DateRange{}, false
	}
	dateRange, err := q.ToDateRange()
	if err != nil {
		h.BadRequest(c, err.Error())
		return costing.DateRange{}, false
	}
	return dateRange, true
}

// archiveLink presigns the archived report. A failure only drops the link.
func (h *CostHandler) archiveLink(c *gin.Context, key string) *ArchiveLink {
	if h.presigner == nil || key == "" {
		return nil
	}
	url, expiresAt, err := h.presigner.PresignDownload(c.Request.Context(), key, h.linkTTL)
	if err != nil {
		logger.L(c.Request.Context()).Warn("Failed to presign report archive", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &ArchiveLink{URL: url, ExpiresAt: expiresAt}
}
