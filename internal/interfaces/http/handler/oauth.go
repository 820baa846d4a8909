package handler

import (
	"context"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ConnectionService manages the accounting connection
type ConnectionService interface {
	AuthorizeURL(scopes []string) (string, error)
	CompleteAuthorization(ctx context.Context, code, state, realmID string) (*appintegration.ConnectionStatus, error)
	ConnectionStatus(ctx context.Context) (*appintegration.ConnectionStatus, error)
	RefreshToken(ctx context.Context) (*appintegration.ConnectionStatus, error)
	Disconnect(ctx context.Context) error
}

// OAuthHandler handles the QuickBooks authorization flow
type OAuthHandler struct {
	BaseHandler
	service ConnectionService
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(service ConnectionService) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// AuthorizeURLResponse carries the consent URL the user must visit
type AuthorizeURLResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// Connect godoc
// @ID           connectQuickBooks
// @Summary      Start QuickBooks authorization
// @Description  Returns the Intuit consent URL with a signed state
// @Tags         qbo
// @Produce      json
// @Param        scope query []string false "Requested scopes"
// @Success      200 {object} APIResponse[AuthorizeURLResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /qbo/connect [get]
func (h *OAuthHandler) Connect(c *gin.Context) {
	var req appintegration.AuthorizeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	url, err := h.service.AuthorizeURL(req.Scopes)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AuthorizeURLResponse{AuthorizeURL: url})
}

// Callback godoc
// @ID           callbackQuickBooks
// @Summary      Complete QuickBooks authorization
// @Description  Exchanges the authorization code and stores the token pair
// @Tags         qbo
// @Produce      json
// @Param        code    query string true "Authorization code"
// @Param        state   query string true "Signed state"
// @Param        realmId query string true "Company realm ID"
// @Success      200 {object} APIResponse[appintegration.ConnectionStatus]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /qbo/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if errCode := c.Query("error"); errCode != "" {
		h.ErrorWithCode(c, dto.ErrCodeAuthorizationDenied, "Authorization was not granted: "+errCode)
		return
	}

	var req appintegration.CallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	status, err := h.service.CompleteAuthorization(c.Request.Context(), req.Code, req.State, req.RealmID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// Status godoc
// @ID           getQuickBooksStatus
// @Summary      Get the connection state
// @Tags         qbo
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.ConnectionStatus]
// @Router       /qbo/status [get]
func (h *OAuthHandler) Status(c *gin.Context) {
	status, err := h.service.ConnectionStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// Refresh godoc
// @ID           refreshQuickBooksToken
// @Summary      Force a token refresh
// @Tags         qbo
// @Produce      json
// @Success      200 {object} APIResponse[appintegration.ConnectionStatus]
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /qbo/refresh [post]
func (h *OAuthHandler) Refresh(c *gin.Context) {
	status, err := h.service.RefreshToken(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// Disconnect godoc
// @ID           disconnectQuickBooks
// @Summary      Revoke and forget the stored tokens
// @Tags         qbo
// @Produce      json
// @Success      200 {object} SuccessResponse
// @Router       /qbo/disconnect [post]
func (h *OAuthHandler) Disconnect(c *gin.Context) {
	if err := h.service.Disconnect(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, nil)
}
