package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrUnknownJobKind is returned for a job kind the executor cannot run
	ErrUnknownJobKind = errors.New("unknown sync job kind")

	// ErrJobNotFound is returned when a job is not in the history
	ErrJobNotFound = errors.New("job not found")
)
