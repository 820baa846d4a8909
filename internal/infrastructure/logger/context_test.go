package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	assert.Same(t, log, FromContext(WithContext(context.Background(), log)))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	base := zap.NewNop()

	ctx, _ = WithRequestID(ctx, base, "req-1")
	ctx, _ = WithRealmID(ctx, base, "9130")
	ctx, _ = WithJobID(ctx, base, "job-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "9130", GetRealmID(ctx))
	assert.Equal(t, "job-1", GetJobID(ctx))
	assert.Empty(t, GetRealmID(context.Background()))
}

func TestTraceIDs(t *testing.T) {
	ctx := spanContext(t)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
	assert.Equal(t, "00f067aa0ba902b7", GetSpanID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))
}

func TestContextLogger_EnrichesEntries(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := spanContext(t)
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")
	ctx = context.WithValue(ctx, RealmIDKey, "9130")
	ctx = context.WithValue(ctx, JobIDKey, "job-3")
	ctx = WithContext(ctx, zap.New(core))

	L(ctx).With(zap.String("operation", "sync_project")).Warn("Item failed")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "9130", fields["realm_id"])
	assert.Equal(t, "job-3", fields["job_id"])
	assert.Equal(t, "sync_project", fields["operation"])
}

func TestContextLogger_EmptyContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	WithLogger(context.Background(), zap.New(core)).Info("plain")
	WithLogger(context.Background(), nil).Error("dropped")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Context)
	assert.NotNil(t, L(context.Background()).Zap())
}
