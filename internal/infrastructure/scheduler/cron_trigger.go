package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// SyncHour is the UTC hour of the nightly run
	SyncHour int
	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
	// Kinds are enqueued in order at each nightly run
	Kinds []JobKind
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		SyncHour:      2,
		CheckInterval: time.Minute,
		Kinds:         []JobKind{KindSyncAllProjects, KindPullPayments},
	}
}

// CronTriggerConfigFromSettings builds a CronTriggerConfig from the
// application settings
func CronTriggerConfigFromSettings(s config.SchedulerConfig) CronTriggerConfig {
	cfg := DefaultCronTriggerConfig()
	cfg.SyncHour = s.SyncHour
	if s.CheckInterval > 0 {
		cfg.CheckInterval = s.CheckInterval
	}
	return cfg
}

// CronTrigger enqueues the nightly project sync and payment pull once per
// UTC day, at the first check inside the configured hour.
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *SyncScheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(cfg CronTriggerConfig, scheduler *SyncScheduler, logger *zap.Logger) *CronTrigger {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = DefaultCronTriggerConfig().Kinds
	}
	return &CronTrigger{
		config:    cfg,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("sync_hour_utc", c.config.SyncHour),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger enqueues the nightly jobs when the hour has come and they
// have not run today. It reports whether anything was enqueued.
func (c *CronTrigger) checkAndTrigger() bool {
	now := c.now().UTC()
	if now.Hour() != c.config.SyncHour {
		return false
	}
	today := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == today {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = today
	c.mu.Unlock()

	c.logger.Info("Triggering nightly sync", zap.String("date", today))
	enqueued := false
	for _, kind := range c.config.Kinds {
		if c.scheduler.HasActive(kind) {
			c.logger.Info("Skipping nightly job, previous run still active", zap.String("kind", string(kind)))
			continue
		}
		job, err := c.scheduler.Submit(kind, nil, TriggerCron)
		if err != nil {
			level := zap.ErrorLevel
			if errors.Is(err, ErrSchedulerNotRunning) {
				level = zap.WarnLevel
			}
			c.logger.Log(level, "Failed to enqueue nightly job", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		c.logger.Info("Nightly job enqueued", zap.String("kind", string(kind)), zap.String("job_id", job.ID.String()))
		enqueued = true
	}
	return enqueued
}
