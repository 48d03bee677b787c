package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leaderboard/internal/leaderboard"
	"leaderboard/internal/models"
	"leaderboard/internal/version"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLeaderboardService implements leaderboard.ServiceInterface for testing
type MockLeaderboardService struct {
	mock.Mock
}

func (m *MockLeaderboardService) SubmitScore(ctx context.Context, identifier, name string, score float64) (*models.SubmitScoreResponse, error) {
	args := m.Called(ctx, identifier, name, score)
	resp, _ := args.Get(0).(*models.SubmitScoreResponse)
	return resp, args.Error(1)
}

func (m *MockLeaderboardService) SubmitRequest(ctx context.Context, identifier string, req *models.SubmitScoreRequest) (*models.SubmitScoreResponse, error) {
	args := m.Called(ctx, identifier, req)
	resp, _ := args.Get(0).(*models.SubmitScoreResponse)
	return resp, args.Error(1)
}

func (m *MockLeaderboardService) GetScores(ctx context.Context, limit int) []models.ScoreEntry {
	args := m.Called(ctx, limit)
	scores, _ := args.Get(0).([]models.ScoreEntry)
	return scores
}

func (m *MockLeaderboardService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var sampleScores = []models.ScoreEntry{
	{Name: "HB", Score: 99.5, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	{Name: "AL", Score: 42, Timestamp: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)},
}

// newTestRouter mounts handlers the way SetupRoutes does, without CORS.
func newTestRouter(h *Handlers) *mux.Router {
	config := models.NewDefaultConfig()
	config.Server.CORS.Enabled = false
	return SetupRoutes(h, config)
}

func decodeError(t *testing.T, body *bytes.Buffer) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestNewHandlers(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)

	assert.NotNil(t, handlers)
	assert.Equal(t, mockService, handlers.service)
	assert.Equal(t, models.DefaultTopN, handlers.topN)
	assert.Equal(t, models.DefaultMaxKeep, handlers.maxKeep)
}

func TestHandlers_SubmitScore_Success(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)

	expected := &models.SubmitScoreResponse{OK: true, MadeTop: true, Scores: sampleScores}
	mockService.On("SubmitRequest", mock.Anything, "203.0.113.7:/api/score",
		mock.MatchedBy(func(req *models.SubmitScoreRequest) bool {
			return req.Name == "HB" && req.Score.String() == "99.5"
		})).Return(expected, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(`{"name":"HB","score":99.5}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:40000"
	rec := httptest.NewRecorder()

	newTestRouter(handlers).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["madeTop"])
	assert.Len(t, body["scores"], 2)

	mockService.AssertExpectations(t)
}

func TestHandlers_SubmitScore_StringScore(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)

	mockService.On("SubmitRequest", mock.Anything, mock.Anything,
		mock.MatchedBy(func(req *models.SubmitScoreRequest) bool {
			return req.Score.String() == "12.5"
		})).Return(&models.SubmitScoreResponse{OK: true, Scores: []models.ScoreEntry{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(`{"name":"HB","score":"12.5"}`))
	rec := httptest.NewRecorder()

	newTestRouter(handlers).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestHandlers_SubmitScore_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"wrong type", `{"name": 5, "score": 1}`},
		{"non-numeric string score", `{"name":"HB","score":"abc"}`},
		{"oversized", `{"name":"` + strings.Repeat("x", maxSubmitBodyBytes) + `","score":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockLeaderboardService{}
			handlers := NewHandlers(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			newTestRouter(handlers).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errResp := decodeError(t, rec.Body)
			assert.Equal(t, models.ErrorCodeBadRequest, errResp.Code)
			assert.NotEmpty(t, errResp.RequestID)
			mockService.AssertNotCalled(t, "SubmitRequest", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandlers_SubmitScore_ServiceErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		retryAfter  string
	}{
		{
			name:        "validation",
			err:         leaderboard.NewValidationError("name must be at most 10 characters", nil),
			wantStatus:  http.StatusBadRequest,
			wantCode:    models.ErrorCodeValidation,
			wantMessage: "name must be at most 10 characters",
		},
		{
			name:        "rate limited",
			err:         leaderboard.NewRateLimitedError(30 * time.Second),
			wantStatus:  http.StatusTooManyRequests,
			wantCode:    models.ErrorCodeRateLimitExceeded,
			wantMessage: "too many submissions, try again later",
			retryAfter:  "30",
		},
		{
			name:        "storage",
			err:         leaderboard.NewStorageError("failed to save score", errors.New("/var/lib/secret: read-only file system")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    models.ErrorCodeStorage,
			wantMessage: "Failed to save score",
		},
		{
			name:        "unexpected",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    models.ErrorCodeInternalError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockLeaderboardService{}
			handlers := NewHandlers(mockService)
			mockService.On("SubmitRequest", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(`{"name":"HB","score":1}`))
			rec := httptest.NewRecorder()

			newTestRouter(handlers).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))

			errResp := decodeError(t, rec.Body)
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.Equal(t, tt.wantMessage, errResp.Message)
			assert.NotContains(t, errResp.Message, "/var/lib/secret")
		})
	}
}

func TestHandlers_SubmitScore_IdentifierPerClient(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)
	router := newTestRouter(handlers)

	mockService.On("SubmitRequest", mock.Anything, "198.51.100.1:/api/score", mock.Anything).
		Return(&models.SubmitScoreResponse{OK: true}, nil).Once()
	mockService.On("SubmitRequest", mock.Anything, "198.51.100.2:/api/score", mock.Anything).
		Return(&models.SubmitScoreResponse{OK: true}, nil).Once()

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(`{"name":"HB","score":1}`))
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	mockService.AssertExpectations(t)
}

func TestHandlers_GetScores(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{"default limit", "", 7},
		{"explicit limit", "?limit=2", 2},
		{"capped at max keep", "?limit=5000", 50},
		{"negative passed through for clamping", "?limit=-3", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockLeaderboardService{}
			handlers := NewHandlers(mockService, WithLimits(7, 50))
			mockService.On("GetScores", mock.Anything, tt.wantLimit).Return(sampleScores)

			req := httptest.NewRequest(http.MethodGet, "/api/scores"+tt.query, nil)
			rec := httptest.NewRecorder()

			newTestRouter(handlers).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp models.ScoresResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, sampleScores, resp.Scores)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandlers_GetScores_EmptyIsArray(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)
	mockService.On("GetScores", mock.Anything, models.DefaultTopN).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/scores", nil)
	rec := httptest.NewRecorder()

	newTestRouter(handlers).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scores":[]}`, rec.Body.String())
}

func TestHandlers_GetScores_InvalidLimit(t *testing.T) {
	mockService := &MockLeaderboardService{}
	handlers := NewHandlers(mockService)

	req := httptest.NewRequest(http.MethodGet, "/api/scores?limit=ten", nil)
	rec := httptest.NewRecorder()

	newTestRouter(handlers).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrorCodeInvalidRequest, decodeError(t, rec.Body).Code)
	mockService.AssertNotCalled(t, "GetScores", mock.Anything, mock.Anything)
}

func TestHandlers_Version(t *testing.T) {
	handlers := NewHandlers(&MockLeaderboardService{}, WithVersionInfo(version.Info{
		Version:   "v1.2.3",
		GitCommit: "abc1234",
		BuildDate: "2026-02-21T10:00:00Z",
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()

	newTestRouter(handlers).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.2.3","git_commit":"abc1234","build_date":"2026-02-21T10:00:00Z"}`, rec.Body.String())
}

func TestHandlers_HealthCheck(t *testing.T) {
	for _, path := range []string{"/health", "/api/health"} {
		t.Run("healthy "+path, func(t *testing.T) {
			mockService := &MockLeaderboardService{}
			mockService.On("Health", mock.Anything).Return(nil)
			handlers := NewHandlers(mockService)

			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()

			newTestRouter(handlers).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp models.HealthCheckResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.True(t, resp.OK)
			assert.Equal(t, models.StatusHealthy, resp.Status)
			assert.Equal(t, models.StatusHealthy, resp.Components["storage"].Status)
		})
	}

	t.Run("storage down", func(t *testing.T) {
		mockService := &MockLeaderboardService{}
		mockService.On("Health", mock.Anything).Return(errors.New("directory missing"))
		handlers := NewHandlers(mockService)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		newTestRouter(handlers).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp models.HealthCheckResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.OK)
		assert.Equal(t, models.StatusUnhealthy, resp.Status)
		assert.Equal(t, "directory missing", resp.Components["storage"].Message)
	})
}

func TestRoutes_MethodNotAllowedAndNotFound(t *testing.T) {
	router := newTestRouter(NewHandlers(&MockLeaderboardService{}))

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantErr  string
	}{
		{http.MethodGet, "/api/score", http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest},
		{http.MethodPut, "/api/score", http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest},
		{http.MethodDelete, "/api/score", http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest},
		{http.MethodPost, "/api/scores", http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest},
		{http.MethodPost, "/api/version", http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest},
		{http.MethodGet, "/api/nope", http.StatusNotFound, models.ErrorCodeNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound, models.ErrorCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec.Body).Code)
		})
	}
}
