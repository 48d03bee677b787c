// Package leaderboard orchestrates score submission: per-client admission,
// input validation and persistence, in that order. Reads go straight to the
// store and never fail.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"leaderboard/internal/models"
	"leaderboard/internal/ratelimit"
	"leaderboard/internal/storage"
)

// Service handles leaderboard business logic
type Service struct {
	storage storage.Storage
	limiter ratelimit.Limiter
	config  models.LeaderboardConfig
}

// NewService creates a new leaderboard service. Zero values in config fall
// back to the package defaults.
func NewService(store storage.Storage, limiter ratelimit.Limiter, config models.LeaderboardConfig) *Service {
	if config.MaxKeep <= 0 {
		config.MaxKeep = models.DefaultMaxKeep
	}
	if config.TopN <= 0 {
		config.TopN = models.DefaultTopN
	}
	if config.MaxNameLength <= 0 {
		config.MaxNameLength = models.DefaultMaxNameLength
	}
	if config.MaxScore <= 0 {
		config.MaxScore = models.DefaultMaxScore
	}

	return &Service{
		storage: store,
		limiter: limiter,
		config:  config,
	}
}

// SubmitScore implements ServiceInterface.
func (s *Service) SubmitScore(ctx context.Context, identifier, name string, score float64) (*models.SubmitScoreResponse, error) {
	if err := s.admit(identifier); err != nil {
		return nil, err
	}
	return s.submit(ctx, name, score)
}

// SubmitRequest is SubmitScore for a decoded request body. The score is parsed
// only after the caller has been admitted, so malformed payloads still count
// against the rate limit.
func (s *Service) SubmitRequest(ctx context.Context, identifier string, req *models.SubmitScoreRequest) (*models.SubmitScoreResponse, error) {
	if err := s.admit(identifier); err != nil {
		return nil, err
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}
	score, err := req.ScoreValue()
	if err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}
	return s.submit(ctx, req.Name, score)
}

func (s *Service) admit(identifier string) error {
	if allowed, info := s.limiter.Allow(identifier); !allowed {
		slog.Warn("Score submission rate limited",
			"identifier", identifier,
			"retry_after", info.RetryAfter)
		return NewRateLimitedError(info.RetryAfter)
	}
	return nil
}

func (s *Service) submit(ctx context.Context, name string, score float64) (*models.SubmitScoreResponse, error) {
	name = strings.TrimSpace(name)
	if err := s.validate(name, score); err != nil {
		return nil, err
	}

	result, err := s.storage.Submit(ctx, name, score)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidEntry) {
			return nil, NewValidationError("invalid score entry", err)
		}
		slog.Error("Failed to persist score",
			"name", name,
			"score", score,
			"error", err)
		return nil, NewStorageError("failed to save score", err)
	}

	slog.Debug("Score submitted",
		"name", result.Entry.Name,
		"score", result.Entry.Score,
		"made_top", result.MadeTop)

	return models.NewSubmitScoreResponse(result), nil
}

// validate applies the submission bounds. name is already trimmed.
func (s *Service) validate(name string, score float64) error {
	if name == "" {
		return NewValidationError("name is required", nil)
	}
	if n := models.DisplayLength(name); n > s.config.MaxNameLength {
		return NewValidationError(
			fmt.Sprintf("name must be at most %d characters", s.config.MaxNameLength), nil)
	}
	if !models.IsFinite(score) {
		return NewValidationError("score must be a finite number", nil)
	}
	if score < 0 || score > s.config.MaxScore {
		return NewValidationError(
			fmt.Sprintf("score must be between 0 and %g", s.config.MaxScore), nil)
	}
	return nil
}

// GetScores implements ServiceInterface. limit is clamped to [0, MaxKeep].
func (s *Service) GetScores(ctx context.Context, limit int) []models.ScoreEntry {
	limit = max(0, min(limit, s.config.MaxKeep))

	scores, err := s.storage.Top(ctx, limit)
	if err != nil {
		slog.Warn("Failed to read scores, returning empty leaderboard",
			"limit", limit,
			"error", err)
		return []models.ScoreEntry{}
	}
	if scores == nil {
		return []models.ScoreEntry{}
	}
	return scores
}

// TopN returns the configured size of the public leaderboard view.
func (s *Service) TopN() int {
	return s.config.TopN
}

// MaxKeep returns the configured retention cap.
func (s *Service) MaxKeep() int {
	return s.config.MaxKeep
}

// Health implements ServiceInterface.
func (s *Service) Health(ctx context.Context) error {
	return s.storage.Ping(ctx)
}
