package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"leaderboard/internal/models"
	"leaderboard/internal/ratelimit"
	"leaderboard/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestServeOpenAPISpec_Document(t *testing.T) {
	h := NewHandlers(&MockLeaderboardService{})
	rec := httptest.NewRecorder()

	h.ServeOpenAPISpec(rec, httptest.NewRequest(http.MethodGet, openAPISpecPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, docsCacheMaxAge, rec.Header().Get("Cache-Control"))
	assert.Equal(t, openAPIETag, rec.Header().Get("ETag"))

	var doc struct {
		OpenAPI string                 `yaml:"openapi"`
		Paths   map[string]interface{} `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/score")
	assert.Contains(t, doc.Paths, "/api/scores")
}

func TestServeOpenAPISpec_Conditional(t *testing.T) {
	h := NewHandlers(&MockLeaderboardService{})

	tests := []struct {
		name        string
		method      string
		ifNoneMatch string
		wantStatus  int
		wantBody    bool
	}{
		{name: "matching etag", method: http.MethodGet, ifNoneMatch: openAPIETag, wantStatus: http.StatusNotModified},
		{name: "stale etag", method: http.MethodGet, ifNoneMatch: `"stale"`, wantStatus: http.StatusOK, wantBody: true},
		{name: "head", method: http.MethodHead, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, openAPISpecPath, nil)
			if tt.ifNoneMatch != "" {
				req.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			rec := httptest.NewRecorder()

			h.ServeOpenAPISpec(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.Len() > 0)
		})
	}
}

func TestServeSwaggerUI(t *testing.T) {
	h := NewHandlers(&MockLeaderboardService{}, WithVersionInfo(version.Info{Version: "v1.7.0"}))
	rec := httptest.NewRecorder()

	h.ServeSwaggerUI(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, docsCacheMaxAge, rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, `<div id="swagger-ui"></div>`)
	assert.Contains(t, body, "<title>Leaderboard API 1.7.0</title>")
	assert.Contains(t, body, "openapi.yaml")
}

func TestDocsRoutes_BypassRateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucketLimiter(1, 1, 0)
	defer limiter.Close()

	router := SetupRoutes(NewHandlers(&MockLeaderboardService{}), models.NewDefaultConfig(),
		WithRateLimiter(ratelimit.Middleware(limiter)))
	server := httptest.NewServer(router)
	defer server.Close()

	for i := 0; i < 3; i++ {
		for _, path := range []string{openAPISpecPath, "/api/docs"} {
			resp, err := http.Get(server.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, "%s request %d", path, i)
		}
	}
}
