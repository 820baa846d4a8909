package handler

import "github.com/flocon/backend/internal/interfaces/http/dto"

// The types below only describe response envelopes for the OpenAPI
// annotations. Handlers write dto.Response.

// APIResponse is the envelope of a successful call returning T
// @Description Sync API response with typed data
type APIResponse[T any] struct {
	Success bool `json:"success" example:"true"`
	Data    T    `json:"data,omitempty"`
}

// ListResponse is the envelope of a listing; Meta.Total counts every
// item the server holds and Meta.Limit is the page size applied
// @Description Sync API listing with paging metadata
type ListResponse[T any] struct {
	Success bool     `json:"success" example:"true"`
	Data    []T      `json:"data"`
	Meta    dto.Meta `json:"meta"`
}

// ErrorResponse is the envelope of a failed call. Error.Code is one of the
// dto ErrCode constants.
// @Description Sync API error
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
