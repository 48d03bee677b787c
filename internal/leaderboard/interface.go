package leaderboard

import (
	"context"
	"leaderboard/internal/models"
)

// ServiceInterface defines the leaderboard operations exposed to transports
type ServiceInterface interface {
	// SubmitScore admits, validates and persists a score for the caller
	// identified by identifier.
	SubmitScore(ctx context.Context, identifier, name string, score float64) (*models.SubmitScoreResponse, error)

	// SubmitRequest is SubmitScore for a decoded, not yet validated body.
	SubmitRequest(ctx context.Context, identifier string, req *models.SubmitScoreRequest) (*models.SubmitScoreResponse, error)

	// GetScores returns up to limit ranked entries. It never fails; storage
	// read problems degrade to an empty leaderboard.
	GetScores(ctx context.Context, limit int) []models.ScoreEntry

	// Health reports whether the storage backend is reachable.
	Health(ctx context.Context) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
