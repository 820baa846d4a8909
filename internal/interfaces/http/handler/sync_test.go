package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/billing"
	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func setupSyncRouter() (*gin.Engine, *mockSyncService) {
	svc := new(mockSyncService)
	h := NewSyncHandler(svc)
	router := gin.New()
	router.POST("/sync/projects/all", h.SyncAllProjects)
	router.POST("/sync/projects/:id", h.SyncProject)
	router.POST("/sync/projects", h.SyncProjects)
	router.POST("/sync/companies/:id", h.SyncCompany)
	router.POST("/sync/vendors/pull", h.PullVendors)
	router.POST("/sync/subcontractors/pull", h.PullSubcontractors)
	router.POST("/sync/customers/pull", h.PullCustomers)
	return router, svc
}

func TestSyncHandler_SyncProject(t *testing.T) {
	router, svc := setupSyncRouter()
	projectID := uuid.New()
	svc.On("SyncProject", mock.Anything, projectID).Return(&appintegration.ProjectSyncResult{
		ProjectID:   projectID,
		RemoteJobID: "58",
		JobAction:   integration.ActionCreated,
	}, nil).Once()

	w := serve(router, http.MethodPost, "/sync/projects/"+projectID.String(), "")

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "58", data["remote_job_id"])
	assert.Equal(t, "created", data["job_action"])
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncProject_Errors(t *testing.T) {
	router, svc := setupSyncRouter()

	w := serve(router, http.MethodPost, "/sync/projects/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	projectID := uuid.New()
	svc.On("SyncProject", mock.Anything, projectID).Return(nil, integration.ErrMissingCustomer).Once()
	w = serve(router, http.MethodPost, "/sync/projects/"+projectID.String(), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeMissingCustomer, decodeResponse(t, w).Error.Code)
}

func TestSyncHandler_SyncProjects(t *testing.T) {
	router, svc := setupSyncRouter()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	batch := &integration.BatchResult{}
	batch.Add(integration.ItemResult{ID: ids[0].String(), Outcome: integration.OutcomeSucceeded, Action: integration.ActionLinked})
	batch.Add(integration.ItemResult{ID: ids[1].String(), Outcome: integration.OutcomeFailed, Message: "invalid reference"})
	svc.On("SyncProjects", mock.Anything, ids).Return(batch, nil).Once()

	w := serve(router, http.MethodPost, "/sync/projects", `{"project_ids":["`+ids[0].String()+`","`+ids[1].String()+`"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, float64(1), data["success_count"])
	assert.Equal(t, float64(1), data["error_count"])
	assert.Len(t, data["items"], 2)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncProjects_Validation(t *testing.T) {
	router, svc := setupSyncRouter()

	w := serve(router, http.MethodPost, "/sync/projects", `{"project_ids":[]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "project_ids", resp.Error.Details[0].Field)
	svc.AssertNotCalled(t, "SyncProjects", mock.Anything, mock.Anything)
}

func TestSyncHandler_SyncAllProjects_Aborted(t *testing.T) {
	router, svc := setupSyncRouter()
	batch := &integration.BatchResult{Aborted: "reauthorization required"}
	batch.Add(integration.ItemResult{ID: "p1", Outcome: integration.OutcomeSucceeded})
	svc.On("SyncAllProjects", mock.Anything).Return(batch, nil).Once()

	w := serve(router, http.MethodPost, "/sync/projects/all", "")

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "reauthorization required", data["aborted"])
	assert.Equal(t, float64(1), data["success_count"])
}

func TestSyncHandler_SyncCompany(t *testing.T) {
	router, svc := setupSyncRouter()
	companyID := uuid.New()
	svc.On("SyncCompany", mock.Anything, companyID, billing.CompanyRoleSubcontractor).Return(&appintegration.CompanySyncResult{
		CompanyID: companyID,
		Role:      billing.CompanyRoleSubcontractor,
		RemoteID:  "77",
		Action:    integration.ActionLinked,
	}, nil).Once()

	w := serve(router, http.MethodPost, "/sync/companies/"+companyID.String(), `{"role":"subcontractor"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "77", decodeResponse(t, w).Data.(map[string]any)["remote_id"])

	w = serve(router, http.MethodPost, "/sync/companies/"+companyID.String(), `{"role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestSyncHandler_Pulls(t *testing.T) {
	router, svc := setupSyncRouter()
	svc.On("PullVendors", mock.Anything).Return(&integration.BatchResult{SuccessCount: 3}, nil).Once()
	svc.On("PullSubcontractors", mock.Anything).Return(nil, integration.ErrNotConnected).Once()
	svc.On("PullCustomers", mock.Anything).Return(&integration.BatchResult{SuccessCount: 2, SkippedCount: 1}, nil).Once()

	w := serve(router, http.MethodPost, "/sync/vendors/pull", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeResponse(t, w).Data.(map[string]any)["success_count"])

	w = serve(router, http.MethodPost, "/sync/subcontractors/pull", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeNotConnected, decodeResponse(t, w).Error.Code)

	w = serve(router, http.MethodPost, "/sync/customers/pull", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, float64(2), data["success_count"])
	assert.Equal(t, float64(1), data["skipped_count"])
	svc.AssertExpectations(t)
}
