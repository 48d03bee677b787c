package storage

import (
	"errors"
	"fmt"
	"leaderboard/internal/models"
	"leaderboard/internal/ranking"
	"strings"
)

var (
	// ErrInvalidEntry is returned when an entry cannot be stored as given.
	ErrInvalidEntry = errors.New("invalid leaderboard entry")

	// ErrWriteFailed is returned when the updated collection could not be persisted.
	ErrWriteFailed = errors.New("failed to persist leaderboard")
)

// validateEntry enforces the storage-level floor shared by all backends.
// Display-length and upper score bounds are checked by the service.
func validateEntry(name string, score float64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if !models.IsFinite(score) {
		return fmt.Errorf("%w: score must be a finite number", ErrInvalidEntry)
	}
	if score < 0 {
		return fmt.Errorf("%w: score must not be negative", ErrInvalidEntry)
	}
	return nil
}

// newSubmitResult builds the Submit response from a ranked collection.
func newSubmitResult(ranked []models.ScoreEntry, entry models.ScoreEntry, topN int) *models.SubmitResult {
	return &models.SubmitResult{
		Entry:   entry,
		Scores:  ranking.Top(ranked, topN),
		MadeTop: ranking.Contains(ranked, entry, topN),
	}
}
