package handler

import (
	"time"

	"github.com/flocon/backend/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobScheduler queues sync jobs and reports their history
type JobScheduler interface {
	Submit(kind scheduler.JobKind, projectID *uuid.UUID, trigger scheduler.JobTrigger) (scheduler.SyncJob, error)
	Get(id uuid.UUID) (scheduler.SyncJob, error)
	History(limit int) []scheduler.SyncJob
	IsRunning() bool
}

// EnqueueJobRequest asks for a sync job to run in the background
type EnqueueJobRequest struct {
	Kind      string     `json:"kind" validate:"required,oneof=sync_all_projects sync_pay_apps pull_payments recompute_billing"`
	ProjectID *uuid.UUID `json:"project_id"`
}

// JobListQuery limits the job history listing
type JobListQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

// SyncJobResponse represents a sync job
type SyncJobResponse struct {
	ID           uuid.UUID            `json:"id"`
	Kind         scheduler.JobKind    `json:"kind"`
	ProjectID    *uuid.UUID           `json:"project_id,omitempty"`
	Trigger      scheduler.JobTrigger `json:"trigger"`
	Status       scheduler.JobStatus  `json:"status"`
	Error        string               `json:"error,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	RetryCount   int                  `json:"retry_count"`
	NextRetryAt  *time.Time           `json:"next_retry_at,omitempty"`
	SuccessCount int                  `json:"success_count"`
	FailedCount  int                  `json:"failed_count"`
	SkippedCount int                  `json:"skipped_count"`
	Aborted      string               `json:"aborted,omitempty"`
}

func toSyncJobResponse(j scheduler.SyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:           j.ID,
		Kind:         j.Kind,
		ProjectID:    j.ProjectID,
		Trigger:      j.Trigger,
		Status:       j.Status,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		RetryCount:   j.RetryCount,
		NextRetryAt:  j.NextRetryAt,
		SuccessCount: j.SuccessCount,
		FailedCount:  j.FailedCount,
		SkippedCount: j.SkippedCount,
		Aborted:      j.Aborted,
	}
}

// SchedulerHandler exposes the background sync queue
type SchedulerHandler struct {
	BaseHandler
	scheduler JobScheduler
}

// NewSchedulerHandler creates a new scheduler handler. A nil scheduler
// answers every request with 503.
func NewSchedulerHandler(s JobScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

func (h *SchedulerHandler) available(c *gin.Context) bool {
	if h.scheduler == nil || !h.scheduler.IsRunning() {
		h.HandleError(c, scheduler.ErrSchedulerNotRunning)
		return false
	}
	return true
}

// ListJobs godoc
// @ID           listSchedulerJobs
// @Summary      List recent sync jobs
// @Tags         scheduler
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" default(50) maximum(500)
// @Success      200 {object} ListResponse[SyncJobResponse]
// @Failure      503 {object} ErrorResponse
// @Router       /scheduler/jobs [get]
func (h *SchedulerHandler) ListJobs(c *gin.Context) {
	if !h.available(c) {
		return
	}
	q := JobListQuery{Limit: 50}
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	jobs := h.scheduler.History(q.Limit)
	resp := make([]SyncJobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toSyncJobResponse(j)
	}
	h.SuccessWithMeta(c, resp, int64(len(resp)), q.Limit)
}

// GetJob godoc
// @ID           getSchedulerJob
// @Summary      Get a sync job
// @Tags         scheduler
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} APIResponse[SyncJobResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /scheduler/jobs/{id} [get]
func (h *SchedulerHandler) GetJob(c *gin.Context) {
	if !h.available(c) {
		return
	}
	id, ok := h.parseUUIDParam(c, "id", "job")
	if !ok {
		return
	}

	job, err := h.scheduler.Get(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSyncJobResponse(job))
}

// EnqueueJob godoc
// @ID           enqueueSchedulerJob
// @Summary      Queue a sync job
// @Description  Runs the same operation as the nightly schedule, optionally for one project
// @Tags         scheduler
// @Accept       json
// @Produce      json
// @Param        request body EnqueueJobRequest true "Job"
// @Success      202 {object} APIResponse[SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /scheduler/jobs [post]
func (h *SchedulerHandler) EnqueueJob(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	kind, err := scheduler.ParseJobKind(req.Kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	job, err := h.scheduler.Submit(kind, req.ProjectID, scheduler.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, toSyncJobResponse(job))
}
