package handler

import (
	"errors"
	"net/http"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/domain/shared"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/flocon/backend/internal/infrastructure/scheduler"
	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/flocon/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// parseUUIDParam parses a uuid path parameter, answering 400 when invalid
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with list meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, limit int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, limit))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError answers a failed ShouldBind call
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// integrationErrorCodes maps the sync error taxonomy to API error codes,
// checked in order
var integrationErrorCodes = []struct {
	target error
	code   string
}{
	{integration.ErrReauthorizationRequired, dto.ErrCodeReauthorizationRequired},
	{integration.ErrAuthExpired, dto.ErrCodeReauthorizationRequired},
	{integration.ErrNotConnected, dto.ErrCodeNotConnected},
	{integration.ErrInvalidOAuthState, dto.ErrCodeInvalidOAuthState},
	{integration.ErrRemoteValidation, dto.ErrCodeRemoteValidation},
	{integration.ErrRemoteConflict, dto.ErrCodeRemoteConflict},
	{integration.ErrMissingLocalLink, dto.ErrCodeMissingLocalLink},
	{integration.ErrMissingCustomer, dto.ErrCodeMissingCustomer},
	{integration.ErrRateLimited, dto.ErrCodeRateLimited},
	{integration.ErrNetwork, dto.ErrCodeNetwork},
	{scheduler.ErrJobNotFound, dto.ErrCodeNotFound},
	{scheduler.ErrUnknownJobKind, dto.ErrCodeInvalidInput},
	{scheduler.ErrJobQueueFull, dto.ErrCodeQueueFull},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeServiceUnavailable},
}

// ErrorCode returns the API error code for err and whether err is known
func ErrorCode(err error) (string, bool) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.NormalizeErrorCode(domainErr.Code), true
	}
	for _, m := range integrationErrorCodes {
		if errors.Is(err, m.target) {
			return m.code, true
		}
	}
	return dto.ErrCodeInternal, false
}

// HandleError converts domain and sync errors to HTTP responses. Unknown
// errors are logged and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code, known := ErrorCode(err)
	if !known {
		logger.L(c.Request.Context()).Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
		return
	}

	message := err.Error()
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	var remoteErr *integration.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		message = remoteErr.Message
	}
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}
