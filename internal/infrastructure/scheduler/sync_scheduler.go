package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMaxHistory = 100

// Config holds the sync scheduler settings
type Config struct {
	// QueueSize bounds the number of jobs waiting for the worker
	QueueSize int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retries for transient failures
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// MaxHistory is the number of finished jobs kept for inspection
	MaxHistory int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		QueueSize:     32,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Minute,
		MaxHistory:    defaultMaxHistory,
	}
}

// ConfigFromSettings builds a Config from the application settings
func ConfigFromSettings(s config.SchedulerConfig) Config {
	cfg := DefaultConfig()
	cfg.QueueSize = s.QueueSize
	cfg.JobTimeout = s.JobTimeout
	cfg.RetryAttempts = s.RetryAttempts
	cfg.RetryDelay = s.RetryDelay
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.QueueSize <= 0 || c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return ErrInvalidConfig
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	return nil
}

// SyncScheduler runs sync jobs one at a time so the remote API is used
// sequentially. Jobs failing with a transient error before processing any
// item are retried with exponential backoff.
type SyncScheduler struct {
	config   Config
	executor SyncExecutor
	logger   *zap.Logger
	tracer   trace.Tracer

	queue   chan *SyncJob
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	timers  map[uuid.UUID]*time.Timer

	// stateMu guards every job's fields and the history
	stateMu sync.RWMutex
	jobs    map[uuid.UUID]*SyncJob
	order   []uuid.UUID
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(cfg Config, executor SyncExecutor, log *zap.Logger) (*SyncScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncScheduler{
		config:   cfg,
		executor: executor,
		logger:   log,
		tracer:   otel.Tracer("github.com/flocon/backend/scheduler"),
		queue:    make(chan *SyncJob, cfg.QueueSize),
		timers:   make(map[uuid.UUID]*time.Timer),
		jobs:     make(map[uuid.UUID]*SyncJob),
	}, nil
}

// Start starts the worker
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.worker(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)
	return nil
}

// Stop cancels pending retries and the running job, then waits for the
// worker to exit
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether jobs are accepted
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit enqueues a job and returns a snapshot of it
func (s *SyncScheduler) Submit(kind JobKind, projectID *uuid.UUID, trigger JobTrigger) (SyncJob, error) {
	if _, err := ParseJobKind(string(kind)); err != nil {
		return SyncJob{}, err
	}
	job := NewSyncJob(kind, projectID, trigger, s.config.RetryAttempts)

	s.stateMu.Lock()
	s.record(job)
	snapshot := *job
	s.stateMu.Unlock()

	if err := s.enqueue(job); err != nil {
		s.stateMu.Lock()
		s.forget(job.ID)
		s.stateMu.Unlock()
		return SyncJob{}, err
	}
	s.logger.Debug("Sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("trigger", string(trigger)),
	)
	return snapshot, nil
}

// HasActive reports whether a job of kind is pending or running
func (s *SyncScheduler) HasActive(kind JobKind) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	for _, job := range s.jobs {
		if job.Kind == kind && !job.IsTerminal() {
			return true
		}
	}
	return false
}

// Get returns a snapshot of one job
func (s *SyncScheduler) Get(id uuid.UUID) (SyncJob, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return SyncJob{}, ErrJobNotFound
	}
	return *job, nil
}

// History returns snapshots of the most recent jobs, newest first
func (s *SyncScheduler) History(limit int) []SyncJob {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]SyncJob, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.jobs[s.order[i]])
	}
	return out
}

// record adds job to the history, evicting the oldest finished jobs.
// Callers hold stateMu.
func (s *SyncScheduler) record(job *SyncJob) {
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	for len(s.order) > s.config.MaxHistory {
		oldest := s.jobs[s.order[0]]
		if !oldest.IsTerminal() {
			break
		}
		delete(s.jobs, oldest.ID)
		s.order = s.order[1:]
	}
}

// forget drops a job that never entered the queue. Callers hold stateMu.
func (s *SyncScheduler) forget(id uuid.UUID) {
	delete(s.jobs, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *SyncScheduler) enqueue(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *SyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.processJob(ctx, job)
		}
	}
}

func (s *SyncScheduler) mutate(fn func()) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn()
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob) {
	var snapshot SyncJob
	s.mutate(func() {
		job.Start()
		snapshot = *job
	})

	jobCtx, log := logger.WithJobID(ctx, s.logger, job.ID.String())
	log = log.With(zap.String("kind", string(snapshot.Kind)), zap.String("trigger", string(snapshot.Trigger)))
	jobCtx, cancel := context.WithTimeout(jobCtx, s.config.JobTimeout)
	defer cancel()
	jobCtx, span := s.tracer.Start(jobCtx, "scheduler."+string(snapshot.Kind), trace.WithAttributes(
		attribute.String("job.id", snapshot.ID.String()),
		attribute.Int("job.retry_count", snapshot.RetryCount),
	))
	defer span.End()

	log.Info("Processing sync job", zap.Int("retry_count", snapshot.RetryCount))
	result, err := s.executor.Execute(jobCtx, &snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var retry bool
		var delay time.Duration
		s.mutate(func() {
			job.Fail(err)
			if job.ShouldRetry(err) {
				delay = job.ScheduleRetry(s.config.RetryDelay)
				retry = true
			}
		})
		log.Error("Sync job failed", zap.Error(err), zap.Bool("will_retry", retry))
		if retry {
			log.Info("Sync job scheduled for retry", zap.Duration("delay", delay))
			s.retryLater(job, delay)
		}
		return
	}

	s.mutate(func() { job.Complete(result) })
	s.stateMu.RLock()
	log.Info("Sync job completed",
		zap.String("status", string(job.Status)),
		zap.Int("success_count", job.SuccessCount),
		zap.Int("failed_count", job.FailedCount),
		zap.Int("skipped_count", job.SkippedCount),
		zap.String("aborted", job.Aborted),
	)
	s.stateMu.RUnlock()
}

func (s *SyncScheduler) retryLater(job *SyncJob, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, job.ID)
		s.mu.Unlock()
		if err := s.enqueue(job); err != nil {
			s.mutate(func() { job.Fail(err) })
			s.logger.Warn("Failed to re-queue sync job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	})
}

// ActiveKinds returns the kinds that currently have a pending or running
// job, sorted
func (s *SyncScheduler) ActiveKinds() []JobKind {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	seen := map[JobKind]bool{}
	for _, job := range s.jobs {
		if !job.IsTerminal() {
			seen[job.Kind] = true
		}
	}
	kinds := make([]JobKind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
