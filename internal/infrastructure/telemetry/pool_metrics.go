package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttrPoolState labels pooled connections as in_use or idle
var AttrPoolState = attribute.Key("state")

// PoolStatsFunc reads the current connection pool statistics
type PoolStatsFunc func() (sql.DBStats, error)

// RegisterPoolMetrics exports the database pool as observable instruments
// read at each collection. Unregister the returned registration on shutdown.
func RegisterPoolMetrics(meter metric.Meter, stats PoolStatsFunc) (metric.Registration, error) {
	conns, err := meter.Int64ObservableGauge("flocon_db_pool_connections",
		metric.WithDescription("Pooled database connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool connections gauge: %w", err)
	}
	maxConns, err := meter.Int64ObservableGauge("flocon_db_pool_connections_max",
		metric.WithDescription("Maximum open database connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool max gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("flocon_db_pool_wait_total",
		metric.WithDescription("Connection requests that had to wait for a free connection"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool wait counter: %w", err)
	}
	waitTime, err := meter.Float64ObservableCounter("flocon_db_pool_wait_duration_seconds",
		metric.WithDescription("Total time spent waiting for a free connection"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool wait duration counter: %w", err)
	}

	inUse := metric.WithAttributes(AttrPoolState.String("in_use"))
	idle := metric.WithAttributes(AttrPoolState.String("idle"))

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s, err := stats()
		if err != nil {
			// a closed pool reports nothing rather than failing the collection
			return nil
		}
		o.ObserveInt64(conns, int64(s.InUse), inUse)
		o.ObserveInt64(conns, int64(s.Idle), idle)
		o.ObserveInt64(maxConns, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		o.ObserveFloat64(waitTime, s.WaitDuration.Seconds())
		return nil
	}, conns, maxConns, waits, waitTime)
}
