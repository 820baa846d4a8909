package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/quickbooks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	_ appintegration.MetricsRecorder = (*SyncMetrics)(nil)
	_ quickbooks.RequestObserver     = (*SyncMetrics)(nil)
)

// Attribute keys shared by the sync instruments
var (
	AttrOperation  = attribute.Key("operation")
	AttrOutcome    = attribute.Key("outcome")
	AttrResult     = attribute.Key("result")
	AttrStatusCode = attribute.Key("http.status_code")
)

// SyncMetrics records item outcomes, token refreshes and accounting API
// latency.
type SyncMetrics struct {
	items     metric.Int64Counter
	refreshes metric.Int64Counter
	requests  metric.Float64Histogram
}

// NewSyncMetrics creates the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	items, err := meter.Int64Counter("flocon_sync_items_total",
		metric.WithDescription("Items processed by sync operations"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync items counter: %w", err)
	}
	refreshes, err := meter.Int64Counter("flocon_token_refresh_total",
		metric.WithDescription("Access token refresh attempts"),
		metric.WithUnit("{refresh}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}
	requests, err := meter.Float64Histogram("flocon_remote_request_duration_seconds",
		metric.WithDescription("Accounting API round trip duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RemoteDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote request histogram: %w", err)
	}
	return &SyncMetrics{items: items, refreshes: refreshes, requests: requests}, nil
}

func (m *SyncMetrics) RecordSyncItem(ctx context.Context, operation string, outcome integration.Outcome) {
	m.items.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(operation),
		AttrOutcome.String(string(outcome)),
	))
}

func (m *SyncMetrics) RecordTokenRefresh(ctx context.Context, result string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(AttrResult.String(result)))
}

// ObserveRemoteRequest records one round trip. A zero status means the
// request never produced a response.
func (m *SyncMetrics) ObserveRemoteRequest(ctx context.Context, operation string, statusCode int, elapsed time.Duration) {
	status := "none"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.requests.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		AttrOperation.String(operation),
		AttrStatusCode.String(status),
	))
}
