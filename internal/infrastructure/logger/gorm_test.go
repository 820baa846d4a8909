package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func TestGormLogger_LogMode(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(time.Second))

	newGormLog, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)

	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
	assert.Equal(t, time.Second, newGormLog.slowThreshold)
}

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) { return `SELECT * FROM "pay_applications" WHERE project_id = ?`, 3 }

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		opts    []GormLoggerOption
		begin   time.Time
		err     error
		wantMsg string
	}{
		{name: "error", level: gormlogger.Error, begin: time.Now(), err: errors.New("relation does not exist"), wantMsg: "SQL error"},
		{name: "record not found ignored", level: gormlogger.Error, begin: time.Now(), err: gormlogger.ErrRecordNotFound},
		{name: "slow query", level: gormlogger.Warn, opts: []GormLoggerOption{WithSlowThreshold(time.Nanosecond)}, begin: time.Now().Add(-time.Second), wantMsg: "Slow SQL"},
		{name: "normal query", level: gormlogger.Info, begin: time.Now(), wantMsg: "SQL query"},
		{name: "silent", level: gormlogger.Silent, begin: time.Now(), err: errors.New("ignored")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level, tt.opts...)

			gormLog.Trace(context.Background(), tt.begin, query, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Contains(t, logs[0].Message, tt.wantMsg)
		})
	}
}

func TestGormLogger_TraceCarriesContextIDs(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, JobIDKey, "job-7")

	gormLog.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "job-7", fields["job_id"])
}

func TestGormLogger_TruncatesLongStatements(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info, WithMaxSQLLength(16))

	long := `INSERT INTO "pay_applications" ("id","project_id","number") VALUES (?,?,?)`
	gormLog.Trace(context.Background(), time.Now(), func() (string, int64) { return long, 1 }, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, long[:16]+"...", logs[0].ContextMap()["sql"])
}

func TestGormLogger_InfoCarriesRealm(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info)
	ctx := context.WithValue(context.Background(), RealmIDKey, "9130")

	gormLog.Warn(ctx, "migrating %s", "oauth_tokens")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "migrating oauth_tokens", logs[0].Message)
	assert.Equal(t, "9130", logs[0].ContextMap()["realm_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Warn},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
