package storage

import (
	"context"
	"leaderboard/internal/models"
)

// Storage defines the interface for leaderboard persistence. Every backend
// keeps its collection ranked and capped at MaxKeep entries after each write.
type Storage interface {
	// Submit normalizes and persists a single entry, returning the public
	// top-N view after the write and whether the entry is part of it.
	Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error)

	// Top returns the first limit entries in rank order. A non-positive limit
	// yields an empty slice.
	Top(ctx context.Context, limit int) ([]models.ScoreEntry, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (json, memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// MaxOpenConns bounds the database/sql pool for SQLite
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`

	// MaxKeep caps the number of entries retained after every write
	MaxKeep int `json:"max_keep,omitempty" yaml:"max_keep,omitempty"`

	// TopN is the size of the view returned from Submit
	TopN int `json:"top_n,omitempty" yaml:"top_n,omitempty"`
}

func (c Config) maxKeep() int {
	if c.MaxKeep <= 0 {
		return models.DefaultMaxKeep
	}
	return c.MaxKeep
}

func (c Config) topN() int {
	if c.TopN <= 0 {
		return models.DefaultTopN
	}
	return c.TopN
}
