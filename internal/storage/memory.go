package storage

import (
	"context"
	"sync"
	"time"

	"leaderboard/internal/models"
	"leaderboard/internal/ranking"
)

// MemoryStorage implements the Storage interface using an in-memory slice.
// This provider is ideal for development and testing; data is lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []models.ScoreEntry
	maxKeep int
	topN    int
	now     func() time.Time
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		entries: []models.ScoreEntry{},
		maxKeep: config.maxKeep(),
		topN:    config.topN(),
		now:     time.Now,
	}, nil
}

// Submit implements Storage.
func (m *MemoryStorage) Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error) {
	if err := validateEntry(name, score); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := models.NewScoreEntry(name, score, m.now())
	// Insert builds a new slice, so readers holding the old one are unaffected.
	m.entries = ranking.Insert(m.entries, entry, m.maxKeep)

	return newSubmitResult(m.entries, entry, m.topN), nil
}

// Top implements Storage.
func (m *MemoryStorage) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return ranking.Top(m.entries, limit), nil
}

// Ping implements Storage.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	return nil
}
