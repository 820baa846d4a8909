package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBatchDelay is the pause between remote calls of a batch
const DefaultBatchDelay = 500 * time.Millisecond

// BatchRunner processes batch items one at a time, pausing between items so
// that remote calls stay under the accounting system's throttling limits.
type BatchRunner struct {
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics MetricsRecorder
}

// NewBatchRunner creates a runner that waits delay between items. A
// non-positive delay disables the pause.
func NewBatchRunner(delay time.Duration, logger *zap.Logger, metrics MetricsRecorder) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &BatchRunner{
		limiter: newLimiter(delay),
		logger:  logger,
		metrics: metrics,
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Unthrottled returns a runner sharing logger and metrics that never pauses,
// for batches that only touch the local store
func (r *BatchRunner) Unthrottled() *BatchRunner {
	return &BatchRunner{
		limiter: newLimiter(0),
		logger:  r.logger,
		metrics: r.metrics,
	}
}

// ItemFunc processes one batch item
type ItemFunc[T any] func(ctx context.Context, item T) (integration.ItemResult, error)

// RunBatch runs fn over items sequentially. A failing item is recorded and
// the batch moves on. MissingLocalLink errors are recorded as skips. A fatal
// authorization error stops the batch, since every later item would fail the
// same way. A cancelled context stops the batch before the next item; items
// already processed stay processed.
func RunBatch[T any](ctx context.Context, r *BatchRunner, operation string, items []T, key func(T) string, fn ItemFunc[T]) *integration.BatchResult {
	result := &integration.BatchResult{Items: make([]integration.ItemResult, 0, len(items))}

	for _, item := range items {
		if err := r.limiter.Wait(ctx); err != nil {
			result.Aborted = fmt.Sprintf("batch interrupted: %v", err)
			r.logger.Warn("Batch interrupted",
				zap.String("operation", operation),
				zap.Int("processed", result.Total()),
				zap.Int("remaining", len(items)-result.Total()),
				zap.Error(err))
			break
		}

		id := key(item)
		itemResult := runItem(ctx, r, operation, id, item, fn)
		result.Add(itemResult)
		r.metrics.RecordSyncItem(ctx, operation, result.Items[len(result.Items)-1].Outcome)

		if itemResult.Err != nil && integration.IsFatal(itemResult.Err) {
			result.Aborted = itemResult.Err.Error()
			r.logger.Error("Batch aborted",
				zap.String("operation", operation),
				zap.String("item", id),
				zap.Error(itemResult.Err))
			break
		}
	}

	r.logger.Info("Batch finished",
		zap.String("operation", operation),
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount),
		zap.Int("skipped", result.SkippedCount))
	return result
}

func (r *BatchRunner) runItemRecover(id string, res *integration.ItemResult) {
	if p := recover(); p != nil {
		err := fmt.Errorf("panic while processing %s: %v", id, p)
		r.logger.Error("Batch item panicked", zap.String("item", id), zap.Any("panic", p))
		*res = integration.ItemResult{ID: id, Outcome: integration.OutcomeFailed, Message: err.Error(), Err: err}
	}
}

func runItem[T any](ctx context.Context, r *BatchRunner, operation, id string, item T, fn ItemFunc[T]) (res integration.ItemResult) {
	defer r.runItemRecover(id, &res)

	res, err := fn(ctx, item)
	res.ID = id
	switch {
	case err == nil:
		if res.Outcome == "" {
			res.Outcome = integration.OutcomeSucceeded
		}
	case errors.Is(err, integration.ErrMissingLocalLink):
		res.Outcome = integration.OutcomeSkipped
		res.Message = err.Error()
		res.Err = err
	default:
		res.Outcome = integration.OutcomeFailed
		res.Message = err.Error()
		res.Err = err
		r.logger.Warn("Batch item failed",
			zap.String("operation", operation),
			zap.String("item", id),
			zap.Error(err))
	}
	return res
}
