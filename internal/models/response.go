// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Field names match what the game front-end already reads (ok, madeTop, scores)
// - Consistent error structure across all endpoints
// - Helper methods for easy response construction
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// SubmitScoreResponse is returned after a score has been persisted.
type SubmitScoreResponse struct {
	OK      bool         `json:"ok"`
	MadeTop bool         `json:"madeTop"` // Submitted entry is in Scores
	Scores  []ScoreEntry `json:"scores"`  // Public top-N view after the write
}

// ScoresResponse is returned by GET /api/scores.
type ScoresResponse struct {
	Scores []ScoreEntry `json:"scores"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// ErrorResponse provides structured error information with debugging context.
//
// Error Categories:
// - Validation errors: bad name or score
// - Rate limit errors: too many submissions from one client
// - Storage errors: the write could not be persisted
// - Internal errors: anything else
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	OK         bool                       `json:"ok"`
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeNotFound          = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest        = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeValidation        = "VALIDATION_ERROR"    // 400: Input validation failed
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429: Too many submissions
	ErrorCodeStorage           = "STORAGE_ERROR"       // 500: Persisting failed
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500: Server-side error
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewSubmitScoreResponse wraps a storage result for the wire.
func NewSubmitScoreResponse(result *SubmitResult) *SubmitScoreResponse {
	scores := result.Scores
	if scores == nil {
		scores = []ScoreEntry{}
	}
	return &SubmitScoreResponse{
		OK:      true,
		MadeTop: result.MadeTop,
		Scores:  scores,
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		OK:         status == StatusHealthy,
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if status == StatusUnhealthy {
		h.Status = StatusUnhealthy
		h.OK = false
	}
}
