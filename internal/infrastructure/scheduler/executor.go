package scheduler

import (
	"context"
	"fmt"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncExecutor runs one sync job. An error means the job failed before any
// item was processed; per-item failures are reported in the result.
type SyncExecutor interface {
	Execute(ctx context.Context, job *SyncJob) (*integration.BatchResult, error)
}

// SyncOperations is the part of the sync service the scheduler drives. The
// HTTP handlers call the same methods.
type SyncOperations interface {
	SyncAllProjects(ctx context.Context) (*integration.BatchResult, error)
	SyncProjects(ctx context.Context, ids []uuid.UUID) (*integration.BatchResult, error)
	SyncPendingPayApps(ctx context.Context) (*integration.BatchResult, error)
	SyncProjectPayApps(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error)
	PullAllPayments(ctx context.Context) (*integration.BatchResult, error)
	PullProjectPayments(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error)
	RecomputeAll(ctx context.Context) (*integration.BatchResult, error)
	RecomputeProject(ctx context.Context, projectID uuid.UUID) (*appintegration.RecomputeResult, error)
}

var _ SyncOperations = (*appintegration.SyncService)(nil)

// ServiceExecutor maps job kinds onto SyncOperations
type ServiceExecutor struct {
	ops SyncOperations
}

// NewServiceExecutor creates an executor backed by ops
func NewServiceExecutor(ops SyncOperations) *ServiceExecutor {
	return &ServiceExecutor{ops: ops}
}

// Execute runs job against the sync service
func (e *ServiceExecutor) Execute(ctx context.Context, job *SyncJob) (*integration.BatchResult, error) {
	switch job.Kind {
	case KindSyncAllProjects:
		if job.ProjectID != nil {
			return e.ops.SyncProjects(ctx, []uuid.UUID{*job.ProjectID})
		}
		return e.ops.SyncAllProjects(ctx)
	case KindSyncPayApps:
		if job.ProjectID != nil {
			return e.ops.SyncProjectPayApps(ctx, *job.ProjectID)
		}
		return e.ops.SyncPendingPayApps(ctx)
	case KindPullPayments:
		if job.ProjectID != nil {
			return e.ops.PullProjectPayments(ctx, *job.ProjectID)
		}
		return e.ops.PullAllPayments(ctx)
	case KindRecomputeBilling:
		if job.ProjectID != nil {
			return e.recomputeProject(ctx, *job.ProjectID)
		}
		return e.ops.RecomputeAll(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, job.Kind)
	}
}

func (e *ServiceExecutor) recomputeProject(ctx context.Context, projectID uuid.UUID) (*integration.BatchResult, error) {
	res, err := e.ops.RecomputeProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	action := integration.ActionNone
	if res.Saved > 0 {
		action = integration.ActionUpdated
	}
	batch := &integration.BatchResult{}
	batch.Add(integration.ItemResult{
		ID:      projectID.String(),
		Outcome: integration.OutcomeSucceeded,
		Action:  action,
	})
	return batch, nil
}
