package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func newTestSyncMetrics(t *testing.T) (*SyncMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	m, err := NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestSyncMetrics_RecordSyncItem(t *testing.T) {
	m, reader := newTestSyncMetrics(t)
	ctx := context.Background()

	m.RecordSyncItem(ctx, "sync_projects", integration.OutcomeSucceeded)
	m.RecordSyncItem(ctx, "sync_projects", integration.OutcomeSucceeded)
	m.RecordSyncItem(ctx, "sync_projects", integration.OutcomeFailed)
	m.RecordSyncItem(ctx, "sync_pay_apps", integration.OutcomeSkipped)

	metrics := collect(t, reader)
	items, ok := metrics["flocon_sync_items_total"]
	require.True(t, ok)

	byOutcome := sumByAttr(t, items, AttrOutcome)
	assert.Equal(t, int64(2), byOutcome["succeeded"])
	assert.Equal(t, int64(1), byOutcome["failed"])
	assert.Equal(t, int64(1), byOutcome["skipped"])

	byOperation := sumByAttr(t, items, AttrOperation)
	assert.Equal(t, int64(3), byOperation["sync_projects"])
	assert.Equal(t, int64(1), byOperation["sync_pay_apps"])
}

func TestSyncMetrics_RecordTokenRefresh(t *testing.T) {
	m, reader := newTestSyncMetrics(t)
	ctx := context.Background()

	m.RecordTokenRefresh(ctx, "refreshed")
	m.RecordTokenRefresh(ctx, "reused")
	m.RecordTokenRefresh(ctx, "refreshed")

	metrics := collect(t, reader)
	byResult := sumByAttr(t, metrics["flocon_token_refresh_total"], AttrResult)
	assert.Equal(t, map[string]int64{"refreshed": 2, "reused": 1}, byResult)
}

func TestSyncMetrics_ObserveRemoteRequest(t *testing.T) {
	m, reader := newTestSyncMetrics(t)
	ctx := context.Background()

	m.ObserveRemoteRequest(ctx, "get_job", 200, 120*time.Millisecond)
	m.ObserveRemoteRequest(ctx, "get_job", 200, 80*time.Millisecond)
	m.ObserveRemoteRequest(ctx, "get_job", 0, time.Second)

	metrics := collect(t, reader)
	hist, ok := metrics["flocon_remote_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(AttrStatusCode)
		counts[v.AsString()] += dp.Count
	}
	assert.Equal(t, uint64(2), counts["200"])
	assert.Equal(t, uint64(1), counts["none"])
}
