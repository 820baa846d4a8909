package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
)

// Authorization error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeReauthorizationRequired is used when the accounting connection
	// must be authorized again by a user
	ErrCodeReauthorizationRequired = "ERR_REAUTHORIZATION_REQUIRED"
	// ErrCodeNotConnected is used when no accounting connection exists
	ErrCodeNotConnected = "ERR_NOT_CONNECTED"
	// ErrCodeInvalidOAuthState is used when the authorization callback state
	// does not verify
	ErrCodeInvalidOAuthState = "ERR_INVALID_OAUTH_STATE"
	// ErrCodeAuthorizationDenied is used when the user declines consent
	ErrCodeAuthorizationDenied = "ERR_AUTHORIZATION_DENIED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeMissingLocalLink is used when a record references a local
	// entity that was never linked to the accounting system
	ErrCodeMissingLocalLink = "ERR_MISSING_LOCAL_LINK"
	// ErrCodeMissingCustomer is used when a project has no customer to bill
	ErrCodeMissingCustomer = "ERR_MISSING_CUSTOMER"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Remote error codes
const (
	// ErrCodeRemoteValidation is used when the accounting system rejects a
	// payload as invalid
	ErrCodeRemoteValidation = "ERR_REMOTE_VALIDATION"
	// ErrCodeRemoteConflict is used when the accounting system reports a
	// stale object or a duplicate
	ErrCodeRemoteConflict = "ERR_REMOTE_CONFLICT"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeNetwork is used when the accounting system cannot be reached
	ErrCodeNetwork = "ERR_NETWORK"
	// ErrCodeQueueFull is used when the job queue cannot take more work
	ErrCodeQueueFull = "ERR_QUEUE_FULL"
	// ErrCodeDuplicateRequest is used when an Idempotency-Key was already used
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
	// ErrCodeServiceUnavailable is used when a component is not running
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	// Authorization errors
	ErrCodeUnauthorized:            http.StatusUnauthorized,
	ErrCodeReauthorizationRequired: http.StatusUnauthorized,
	ErrCodeNotConnected:            http.StatusConflict,
	ErrCodeInvalidOAuthState:       http.StatusBadRequest,
	ErrCodeAuthorizationDenied:     http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeMissingLocalLink:    http.StatusConflict,
	ErrCodeMissingCustomer:     http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Remote errors
	ErrCodeRemoteValidation:   http.StatusUnprocessableEntity,
	ErrCodeRemoteConflict:     http.StatusConflict,
	ErrCodeRateLimited:        http.StatusTooManyRequests,
	ErrCodeNetwork:            http.StatusBadGateway,
	ErrCodeQueueFull:          http.StatusServiceUnavailable,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"CONCURRENCY_CONFLICT":    ErrCodeConcurrencyConflict,
	"CONCURRENT_MODIFICATION": ErrCodeConcurrencyConflict,
	"VERSION_CONFLICT":        ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":        ErrCodeValidation,
	"BAD_REQUEST":             ErrCodeBadRequest,
	"INTERNAL_ERROR":          ErrCodeInternal,
	"INVALID_PROJECT_NAME":    ErrCodeInvalidInput,
	"INVALID_COMPANY_NAME":    ErrCodeInvalidInput,
	"INVALID_COMPANY_ROLE":    ErrCodeInvalidInput,
	"INVALID_REMOTE_LINK":     ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
