package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader is the header clients set on retried writes
	IdempotencyKeyHeader = "Idempotency-Key"
	// MaxIdempotencyKeyLength is the maximum accepted header length
	MaxIdempotencyKeyLength = 128
)

// Idempotency rejects a write whose Idempotency-Key was already used on the
// same method and path within ttl. Requests without the header pass through.
// A request that ends in an error response releases its key so the client
// may retry it. Store failures let the request through.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeValidation,
				"Idempotency-Key is too long",
				getRequestID(c),
			))
			return
		}

		ctx := c.Request.Context()
		scoped := c.Request.Method + " " + c.Request.URL.Path + " " + key
		claimed, err := store.Claim(ctx, scoped, ttl)
		if err != nil {
			logger.L(ctx).Warn("Idempotency store unavailable, processing request", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"A request with this Idempotency-Key was already received",
				getRequestID(c),
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
