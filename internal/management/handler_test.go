package management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/reconcile"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/lock"
)

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func TestHandler_ListIntegrations(t *testing.T) {
	router := setupRouter(newTestService(&fakeExecutor{}, lock.NewMemoryLocker()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/integrations", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var items []IntegrationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 2)
}

func TestHandler_GetIntegration_NotFound(t *testing.T) {
	router := setupRouter(newTestService(&fakeExecutor{}, lock.NewMemoryLocker()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/integrations/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp pkgerrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.ErrorCode)
}

func TestHandler_GetHistory(t *testing.T) {
	router := setupRouter(newTestService(&fakeExecutor{}, lock.NewMemoryLocker()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/integrations/cfg-users/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var history []integration.ExecutionLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "run-2", history[0].ID)
}

func TestHandler_ExecuteIntegration(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		header   string
		wantUser string
	}{
		{name: "body user", body: `{"userId":"u-body"}`, header: "u-header", wantUser: "u-body"},
		{name: "header user", header: "u-header", wantUser: "u-header"},
		{name: "anonymous", wantUser: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{result: &reconcile.Result{RunID: "run-9", Status: integration.StatusSuccess, Inserted: 1}}
			router := setupRouter(newTestService(exec, lock.NewMemoryLocker()))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/cfg-users/execute", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var result reconcile.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, "run-9", result.RunID)
			assert.Equal(t, []string{tt.wantUser}, exec.users)
		})
	}
}

func TestHandler_ExecuteIntegration_OutlivesRequest(t *testing.T) {
	exec := &fakeExecutor{result: &reconcile.Result{RunID: "run-3", Status: integration.StatusSuccess}}
	router := setupRouter(newTestService(exec, lock.NewMemoryLocker()))

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/cfg-users/execute", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, []string{"cfg-users"}, exec.calls)
	assert.NoError(t, exec.ctxErr, "client disconnect must not cancel the run")
	assert.True(t, exec.deadline, "execution timeout still applies")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_ExecuteIntegration_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		locked     bool
		wantStatus int
		wantCode   string
	}{
		{name: "malformed body", body: `{"userId":`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "unsafe filter", err: pkgerrors.ErrUnsafeFilter, wantStatus: http.StatusBadRequest, wantCode: "UNSAFE_FILTER"},
		{name: "source down", err: pkgerrors.ErrSourceUnavailable, wantStatus: http.StatusBadGateway, wantCode: "SOURCE_UNAVAILABLE"},
		{name: "already running", locked: true, wantStatus: http.StatusConflict, wantCode: "RUN_IN_PROGRESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker := lock.NewMemoryLocker()
			if tt.locked {
				_, err := locker.Acquire(t.Context(), "cfg-users", time.Minute)
				require.NoError(t, err)
			}
			router := setupRouter(newTestService(&fakeExecutor{err: tt.err}, locker))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/cfg-users/execute", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp pkgerrors.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
		})
	}
}
