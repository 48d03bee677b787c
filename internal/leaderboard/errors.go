package leaderboard

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"leaderboard/internal/models"
)

// Sentinel errors for classifying service failures with errors.Is.
var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrInvalidInput = errors.New("invalid input")
	ErrStorage      = errors.New("storage failure")
)

// ServiceError represents errors from the leaderboard service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	RetryAfter time.Duration // set on rate limit errors
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error code.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Code == models.ErrorCodeRateLimitExceeded
	case ErrInvalidInput:
		return e.Code == models.ErrorCodeValidation
	case ErrStorage:
		return e.Code == models.ErrorCodeStorage
	}
	return false
}

// Error constructors for common service errors

func NewRateLimitedError(retryAfter time.Duration) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeRateLimitExceeded,
		Message:    "too many submissions, try again later",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewStorageError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeStorage,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
