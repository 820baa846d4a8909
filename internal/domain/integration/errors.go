package integration

import (
	"errors"
	"fmt"
)

// Error taxonomy for remote accounting operations
var (
	// ErrAuthExpired means the remote rejected the access token (HTTP 401)
	ErrAuthExpired = errors.New("integration: access token rejected")
	// ErrReauthorizationRequired means the refresh token has expired; a user
	// must go through the authorization flow again
	ErrReauthorizationRequired = errors.New("integration: reauthorization required")
	// ErrNotConnected means no active credential exists for the realm
	ErrNotConnected = errors.New("integration: realm not connected")
	// ErrRemoteValidation means the remote rejected the payload (HTTP 400)
	ErrRemoteValidation = errors.New("integration: remote validation error")
	// ErrRemoteConflict means a normalized name collides with an existing remote record
	ErrRemoteConflict = errors.New("integration: remote name conflict")
	// ErrMissingLocalLink means a required remote id is not stored locally
	ErrMissingLocalLink = errors.New("integration: missing local link")
	// ErrMissingCustomer means the project has no primary customer
	ErrMissingCustomer = errors.New("integration: project has no primary customer")
	// ErrRateLimited means the remote throttled the request (HTTP 429)
	ErrRateLimited = errors.New("integration: rate limited")
	// ErrNetwork covers transport failures and remote 5xx responses
	ErrNetwork = errors.New("integration: network error")
	// ErrInvalidOAuthState means the authorization callback state did not verify
	ErrInvalidOAuthState = errors.New("integration: invalid oauth state")
)

// RemoteError carries the details of a failed remote call. Kind is one of the
// taxonomy sentinels, so errors.Is(err, ErrRemoteValidation) works on it.
type RemoteError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
	Detail     string
}

// NewRemoteError creates a RemoteError
func NewRemoteError(kind error, statusCode int, code, message, detail string) *RemoteError {
	return &RemoteError{
		Kind:       kind,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Detail:     detail,
	}
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	msg := e.Message
	if e.Detail != "" && e.Detail != e.Message {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	if e.Code != "" {
		return fmt.Sprintf("%v (code %s, status %d): %s", e.Kind, e.Code, e.StatusCode, msg)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%v: %s", e.Kind, msg)
}

// Unwrap returns the taxonomy sentinel
func (e *RemoteError) Unwrap() error {
	return e.Kind
}

// IsTransient reports whether the error may succeed on a later attempt
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}

// IsFatal reports whether the error requires a human to reconnect the realm
func IsFatal(err error) bool {
	return errors.Is(err, ErrReauthorizationRequired) || errors.Is(err, ErrNotConnected)
}
