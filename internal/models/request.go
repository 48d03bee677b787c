// Package models - API request types and input validation.
// This file defines the incoming score submission payload.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (trimmed names)
// - Accept scores as JSON numbers or numeric strings
// - Bounds are enforced by the leaderboard service, not here
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SubmitScoreRequest is the body of POST /api/score.
type SubmitScoreRequest struct {
	Name  string      `json:"name"`  // Display name, trimmed before use
	Score json.Number `json:"score"` // Number or numeric string
}

// Normalize trims surrounding whitespace from the name.
func (r *SubmitScoreRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

// Validate checks that a name is present and the score parses as a finite number.
func (r *SubmitScoreRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := r.ScoreValue(); err != nil {
		return err
	}
	return nil
}

// ScoreValue parses the submitted score.
func (r *SubmitScoreRequest) ScoreValue() (float64, error) {
	raw := strings.TrimSpace(r.Score.String())
	if raw == "" {
		return 0, errors.New("score is required")
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("score must be a number: %w", err)
	}
	if !IsFinite(score) {
		return 0, errors.New("score must be a finite number")
	}
	return score, nil
}
