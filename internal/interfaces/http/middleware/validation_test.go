package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncRequest struct {
	ProjectIDs []string `json:"project_ids" validate:"required,min=1,max=2"`
	Role       string   `json:"role" validate:"required,oneof=customer vendor"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req syncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("reports every invalid field by json name", func(t *testing.T) {
		w := postJSON(router, `{"project_ids": ["a", "b", "c"], "role": "owner"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "project_ids", resp.Error.Details[0].Field)
		assert.Equal(t, "Must contain at most 2 items", resp.Error.Details[0].Message)
		assert.Equal(t, "role", resp.Error.Details[1].Field)
		assert.Equal(t, "Must be one of: customer vendor", resp.Error.Details[1].Message)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		w := postJSON(router, `{"project_ids":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeBadRequest)
	})

	t.Run("valid input passes", func(t *testing.T) {
		w := postJSON(router, `{"project_ids": ["a"], "role": "vendor"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestValidationDetails_OtherError(t *testing.T) {
	assert.Nil(t, ValidationDetails(errors.New("boom")))
}
