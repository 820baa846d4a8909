package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// maxRetryDelay caps the exponential retry backoff
const maxRetryDelay = 30 * time.Minute

// JobKind names the sync operation a job runs
type JobKind string

const (
	KindSyncAllProjects  JobKind = "sync_all_projects"
	KindSyncPayApps      JobKind = "sync_pay_apps"
	KindPullPayments     JobKind = "pull_payments"
	KindRecomputeBilling JobKind = "recompute_billing"
)

// AllJobKinds returns every job kind
func AllJobKinds() []JobKind {
	return []JobKind{KindSyncAllProjects, KindSyncPayApps, KindPullPayments, KindRecomputeBilling}
}

// ParseJobKind validates a job kind string
func ParseJobKind(s string) (JobKind, error) {
	for _, k := range AllJobKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJobKind, s)
}

// JobTrigger records what enqueued a job
type JobTrigger string

const (
	TriggerCron   JobTrigger = "cron"
	TriggerManual JobTrigger = "manual"
)

// JobStatus represents the status of a sync job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// SyncJob is one queued run of a sync operation. ProjectID narrows the
// operation to a single project when set.
type SyncJob struct {
	ID          uuid.UUID
	Kind        JobKind
	ProjectID   *uuid.UUID
	Trigger     JobTrigger
	Status      JobStatus
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	SuccessCount int
	FailedCount  int
	SkippedCount int
	Aborted      string
}

// NewSyncJob creates a pending job
func NewSyncJob(kind JobKind, projectID *uuid.UUID, trigger JobTrigger, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		Kind:       kind,
		ProjectID:  projectID,
		Trigger:    trigger,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the batch counters. A batch with failures and no
// successes is FAILED, mixed results are PARTIAL.
func (j *SyncJob) Complete(result *integration.BatchResult) {
	now := time.Now()
	j.CompletedAt = &now
	if result == nil {
		j.Status = JobStatusSuccess
		return
	}
	j.SuccessCount = result.SuccessCount
	j.FailedCount = result.ErrorCount
	j.SkippedCount = result.SkippedCount
	j.Aborted = result.Aborted

	switch {
	case result.ErrorCount == 0 && result.Aborted == "":
		j.Status = JobStatusSuccess
	case result.SuccessCount > 0:
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusFailed
	}
}

// Fail marks the job as failed before any item was processed
func (j *SyncJob) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
}

// ShouldRetry reports whether a failed job may run again. Only transient
// failures are retried; a realm that needs reauthorization never is.
func (j *SyncJob) ShouldRetry(err error) bool {
	if j.Status != JobStatusFailed || j.RetryCount >= j.MaxRetries || err == nil {
		return false
	}
	if errors.Is(err, integration.ErrReauthorizationRequired) {
		return false
	}
	return integration.IsTransient(err)
}

// ScheduleRetry moves the job back to pending and returns the delay before
// its next run: baseDelay * 2^(n-1), capped at 30 minutes.
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = JobStatusPending
	delay := baseDelay << (j.RetryCount - 1)
	if delay > maxRetryDelay || (baseDelay > 0 && delay <= 0) {
		delay = maxRetryDelay
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.CompletedAt = nil
	return delay
}

// IsTerminal reports whether the job will not run again
func (j *SyncJob) IsTerminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusPartial || j.Status == JobStatusFailed
}
