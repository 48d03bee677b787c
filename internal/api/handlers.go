package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"leaderboard/internal/leaderboard"
	"leaderboard/internal/models"
	"leaderboard/internal/ratelimit"
	"leaderboard/internal/version"

	"github.com/gorilla/mux"
)

// maxSubmitBodyBytes bounds POST /api/score bodies.
const maxSubmitBodyBytes = 4 << 10

// Handlers contains HTTP handlers for the leaderboard API
type Handlers struct {
	service     leaderboard.ServiceInterface
	versionInfo version.Info
	startTime   time.Time
	topN        int
	maxKeep     int
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithVersionInfo sets the build metadata reported by /api/version and health checks.
func WithVersionInfo(info version.Info) HandlerOption {
	return func(h *Handlers) {
		h.versionInfo = info
	}
}

// WithLimits sets the default and maximum ?limit for GET /api/scores.
func WithLimits(topN, maxKeep int) HandlerOption {
	return func(h *Handlers) {
		h.topN = topN
		h.maxKeep = maxKeep
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(service leaderboard.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service:     service,
		versionInfo: version.GetInfo(),
		startTime:   time.Now(),
		topN:        models.DefaultTopN,
		maxKeep:     models.DefaultMaxKeep,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubmitScore handles score submissions
// POST /api/score
func (h *Handlers) SubmitScore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)

	var req models.SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	response, err := h.service.SubmitRequest(r.Context(), submitIdentifier(r), &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetScores handles leaderboard reads
// GET /api/scores?limit=N
func (h *Handlers) GetScores(w http.ResponseWriter, r *http.Request) {
	limit := h.topN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "limit must be an integer")
			return
		}
		limit = min(parsed, h.maxKeep)
	}

	scores := h.service.GetScores(r.Context(), limit)
	if scores == nil {
		scores = []models.ScoreEntry{}
	}
	h.writeJSONResponse(w, http.StatusOK, &models.ScoresResponse{Scores: scores})
}

// Version reports build metadata
// GET /api/version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, &models.VersionResponse{
		Version:   h.versionInfo.DisplayVersion(),
		GitCommit: h.versionInfo.GitCommit,
		BuildDate: h.versionInfo.BuildDate,
	})
}

// HealthCheck handles health check requests
// GET /health, GET /api/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.versionInfo.DisplayVersion()
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()

	statusCode := http.StatusOK
	if err := h.service.Health(r.Context()); err != nil {
		slog.Warn("Storage health check failed", "error", err)
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		statusCode = http.StatusServiceUnavailable
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, statusCode, response)
}

// submitIdentifier keys submissions by client and route so limits on one
// endpoint never spill into another.
func submitIdentifier(r *http.Request) string {
	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			path = tmpl
		}
	}
	return ratelimit.ClientIP(r) + ":" + path
}

// writeServiceError maps leaderboard errors onto HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *leaderboard.ServiceError
	if !errors.As(err, &svcErr) {
		slog.Error("Unexpected service error", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
		return
	}

	if errors.Is(svcErr, leaderboard.ErrRateLimited) {
		ratelimit.SetRetryAfter(w, ratelimit.Info{RetryAfter: svcErr.RetryAfter})
	}

	message := svcErr.Message
	if svcErr.StatusCode >= http.StatusInternalServerError {
		// Storage details stay in the logs.
		message = "Failed to save score"
	}
	h.writeErrorResponse(w, r, svcErr.StatusCode, svcErr.Code, message)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; all we can do is log.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, statusCode, errorResp)
}
