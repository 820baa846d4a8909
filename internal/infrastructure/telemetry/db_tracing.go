package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and marks slow or failed
// statements on their spans. Query variables are left out of spans unless
// cfg.DBLogFullSQL is set.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger, opts ...otelgorm.Option) error {
	if !cfg.DBTraceEnabled {
		return nil
	}
	threshold := cfg.DBSlowQueryThresh
	if threshold <= 0 {
		threshold = defaultSlowQueryThreshold
	}

	pluginOpts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.DBLogFullSQL {
		pluginOpts = append(pluginOpts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(append(pluginOpts, opts...)...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateStatement(tx, threshold) }

	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("flocon:before_create", before),
		cb.Query().Before("gorm:query").Register("flocon:before_query", before),
		cb.Update().Before("gorm:update").Register("flocon:before_update", before),
		cb.Delete().Before("gorm:delete").Register("flocon:before_delete", before),
		cb.Row().Before("gorm:row").Register("flocon:before_row", before),
		cb.Raw().Before("gorm:raw").Register("flocon:before_raw", before),
		cb.Create().After("gorm:create").Register("flocon:after_create", after),
		cb.Query().After("gorm:query").Register("flocon:after_query", after),
		cb.Update().After("gorm:update").Register("flocon:after_update", after),
		cb.Delete().After("gorm:delete").Register("flocon:after_delete", after),
		cb.Row().After("gorm:row").Register("flocon:after_row", after),
		cb.Raw().After("gorm:raw").Register("flocon:after_raw", after),
	)
	if err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.DBLogFullSQL),
		zap.Duration("slow_query_threshold", threshold),
	)
	return nil
}

func annotateStatement(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
