package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst then blocks", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 3)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client1"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 1)

		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))

		now = now.Add(time.Second)
		assert.True(t, limiter.Allow("client3"))
	})

	t.Run("evicts idle clients", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		limiter.Allow("old")
		now = now.Add(limiter.idleTTL + time.Second)
		limiter.Allow("new")
		assert.Equal(t, 1, limiter.Len())
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 100)
		var wg sync.WaitGroup
		var allowed atomic.Int32

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("concurrent") {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), allowed.Load())
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(0.5, 2)
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.POST("/sync", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusAccepted, send().Code)
	assert.Equal(t, http.StatusAccepted, send().Code)

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
