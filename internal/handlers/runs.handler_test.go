package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"dgisync/config"
	runsController "dgisync/internal/controllers/runs"
	"dgisync/internal/handlers/middleware"
	"dgisync/internal/models"
	"dgisync/internal/services"
	"dgisync/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunsController struct {
	mock.Mock
}

func (m *MockRunsController) Status(ctx context.Context) (*runsController.StatusResponse, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*runsController.StatusResponse)
	return status, args.Error(1)
}

func (m *MockRunsController) ListRuns(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*models.IngestionRun)
	return runs, args.Error(1)
}

func (m *MockRunsController) LatestRun(ctx context.Context) (*models.IngestionRun, error) {
	args := m.Called(ctx)
	run, _ := args.Get(0).(*models.IngestionRun)
	return run, args.Error(1)
}

func (m *MockRunsController) Trigger() error {
	return m.Called().Error(0)
}

func setupRunsApp(controller *MockRunsController) *fiber.App {
	app := fiber.New()
	mw := middleware.New(config.Config{})
	api := app.Group("/api", mw.TraceID())
	HealthHandler(api, config.Config{GeneralVersion: "test"})
	newRunsHandler(controller, mw, api).Register()
	return app
}

func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&decoded))
	return decoded
}

func TestHealthHandler(t *testing.T) {
	app := setupRunsApp(new(MockRunsController))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestRunsHandler_Status(t *testing.T) {
	controller := new(MockRunsController)
	controller.On("Status", mock.Anything).Return(&runsController.StatusResponse{
		ExpectedLatest: "2025-02",
		Sentinel:       "2025-02",
		UpToDate:       true,
	}, nil)

	resp, err := setupRunsApp(controller).Test(httptest.NewRequest("GET", "/api/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "2025-02", body["expectedLatest"])
	assert.Equal(t, true, body["upToDate"])
}

func TestRunsHandler_ListRuns(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		setup      func(*MockRunsController)
		wantStatus int
	}{
		{
			name: "returns runs",
			url:  "/api/runs?limit=5",
			setup: func(m *MockRunsController) {
				m.On("ListRuns", mock.Anything, 5).Return([]*models.IngestionRun{
					{RunID: "run-2", Status: types.RunStatusAlreadyCurrent},
					{RunID: "run-1", Status: types.RunStatusCompleted},
				}, nil)
			},
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "negative limit",
			url:        "/api/runs?limit=-1",
			setup:      func(m *MockRunsController) {},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "history disabled",
			url:  "/api/runs",
			setup: func(m *MockRunsController) {
				m.On("ListRuns", mock.Anything, 0).Return(nil, services.ErrHistoryDisabled)
			},
			wantStatus: fiber.StatusServiceUnavailable,
		},
		{
			name: "database failure",
			url:  "/api/runs",
			setup: func(m *MockRunsController) {
				m.On("ListRuns", mock.Anything, 0).Return(nil, errors.New("connection refused"))
			},
			wantStatus: fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := new(MockRunsController)
			tt.setup(controller)

			resp, err := setupRunsApp(controller).Test(httptest.NewRequest("GET", tt.url, nil))

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			controller.AssertExpectations(t)
		})
	}
}

func TestRunsHandler_LatestRun(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		controller := new(MockRunsController)
		controller.On("LatestRun", mock.Anything).Return(&models.IngestionRun{RunID: "run-7", Status: types.RunStatusCompleted}, nil)

		resp, err := setupRunsApp(controller).Test(httptest.NewRequest("GET", "/api/runs/latest", nil))

		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "run-7", decodeBody(t, resp.Body)["runId"])
	})

	t.Run("none recorded", func(t *testing.T) {
		controller := new(MockRunsController)
		controller.On("LatestRun", mock.Anything).Return(nil, runsController.ErrNotFound)

		resp, err := setupRunsApp(controller).Test(httptest.NewRequest("GET", "/api/runs/latest", nil))

		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestRunsHandler_Trigger(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		controller := new(MockRunsController)
		controller.On("Trigger").Return(nil)

		resp, err := setupRunsApp(controller).Test(httptest.NewRequest("POST", "/api/runs/trigger", nil))

		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(middleware.TraceIDHeader))
	})

	t.Run("job unavailable", func(t *testing.T) {
		controller := new(MockRunsController)
		controller.On("Trigger").Return(services.ErrJobNotFound)

		resp, err := setupRunsApp(controller).Test(httptest.NewRequest("POST", "/api/runs/trigger", nil))

		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})
}
