package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testArchiveConfig(endpoint string) *config.ArchiveConfig {
	return &config.ArchiveConfig{
		Enabled:         true,
		Bucket:          "flocon-reports",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}
}

func TestNewS3ReportArchive_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ReportArchive(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := testArchiveConfig("http://localhost:9000")
		cfg.Bucket = ""
		_, err := NewS3ReportArchive(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("access key without secret returns error", func(t *testing.T) {
		cfg := testArchiveConfig("http://localhost:9000")
		cfg.SecretAccessKey = ""
		_, err := NewS3ReportArchive(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret access key is required")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3ReportArchive(ctx, testArchiveConfig("http://localhost:9000"),
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "flocon-reports", archive.Bucket())
		assert.Equal(t, time.Hour, archive.presignExpiration)
	})

	t.Run("default presign expiration", func(t *testing.T) {
		archive, err := NewS3ReportArchive(ctx, testArchiveConfig("localhost:9000"))
		require.NoError(t, err)
		assert.Equal(t, defaultPresignExpiration, archive.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normalizeEndpoint("s3.example.com"))
	assert.Equal(t, "http://localhost:9000", normalizeEndpoint("http://localhost:9000"))
}

// fakeS3 serves path-style PutObject and GetObject from memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ReportArchive_StoreAndFetch(t *testing.T) {
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	archive, err := NewS3ReportArchive(ctx, testArchiveConfig(server.URL))
	require.NoError(t, err)

	key := "reports/9130/GeneralLedger/58_2024-01-01_2024-12-31_1717243200.json"
	payload := []byte(`{"Header":{"ReportName":"GeneralLedger"}}`)
	require.NoError(t, archive.Store(ctx, key, payload))

	fake.mu.Lock()
	assert.Equal(t, payload, fake.objects["flocon-reports/"+key])
	assert.Equal(t, reportContentType, fake.types["flocon-reports/"+key])
	fake.mu.Unlock()

	got, err := archive.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = archive.Fetch(ctx, "reports/missing.json")
	assert.Error(t, err)
}

func TestS3ReportArchive_EmptyKey(t *testing.T) {
	ctx := context.Background()
	archive, err := NewS3ReportArchive(ctx, testArchiveConfig("http://localhost:9000"))
	require.NoError(t, err)

	assert.ErrorIs(t, archive.Store(ctx, "", []byte("x")), ErrKeyRequired)
	_, err = archive.Fetch(ctx, "")
	assert.ErrorIs(t, err, ErrKeyRequired)
	_, _, err = archive.PresignDownload(ctx, "", 0)
	assert.ErrorIs(t, err, ErrKeyRequired)
}

func TestS3ReportArchive_PresignDownload(t *testing.T) {
	ctx := context.Background()
	archive, err := NewS3ReportArchive(ctx, testArchiveConfig("http://localhost:9000"))
	require.NoError(t, err)

	url, expiresAt, err := archive.PresignDownload(ctx, "reports/9130/ProfitAndLoss/58.json", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "localhost:9000")
	assert.Contains(t, url, "flocon-reports")
	assert.Contains(t, url, "X-Amz-Signature")
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}
