package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"leaderboard/internal/models"
	"leaderboard/internal/ranking"
)

// fileLocks holds one mutex per canonical file path so that every JSONStorage
// pointed at the same file in this process serializes its writes.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// JSONStorage implements the Storage interface on a single JSON array file.
//
// Writers serialize on a per-file mutex around read, insert and publish.
// Publishing writes a temp file in the same directory, syncs it and renames
// it over the canonical path, so readers never observe a partial file and
// need no lock. A missing, empty or corrupt file reads as an empty
// leaderboard; the next successful write replaces it.
//
// The lock is process-local. Running several processes against one file
// can lose updates; use the sqlite or postgres backend for that.
type JSONStorage struct {
	filePath string
	maxKeep  int
	topN     int
	mu       *sync.Mutex
	now      func() time.Time
	rename   func(oldpath, newpath string) error
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON storage")
	}

	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	storage := &JSONStorage{
		filePath: path,
		maxKeep:  config.maxKeep(),
		topN:     config.topN(),
		mu:       lockFor(path),
		now:      time.Now,
		rename:   os.Rename,
	}

	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	return storage, nil
}

// Path returns the canonical file path.
func (j *JSONStorage) Path() string {
	return j.filePath
}

// ensureFileExists creates the JSON file with an empty array if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	info, err := os.Stat(j.filePath)
	switch {
	case err == nil:
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", j.filePath)
		}
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to stat file: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.publish([]models.ScoreEntry{})
}

// Submit implements Storage.
func (j *JSONStorage) Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error) {
	if err := validateEntry(name, score); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := models.NewScoreEntry(name, score, j.now())
	ranked := ranking.Insert(j.load(), entry, j.maxKeep)

	if err := j.publish(ranked); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return newSubmitResult(ranked, entry, j.topN), nil
}

// Top implements Storage. It reads the last published file without locking.
func (j *JSONStorage) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := j.load()
	// Hand-edited files may be out of order.
	if !ranking.IsRanked(entries) {
		entries = ranking.Sort(entries)
	}
	return ranking.Top(entries, limit), nil
}

// Ping checks that the directory holding the file is still reachable.
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(j.filePath)); err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	return nil
}

// Close implements Storage. The JSON backend holds no open handles.
func (j *JSONStorage) Close() error {
	return nil
}

// load reads the canonical file. Any failure degrades to an empty collection.
func (j *JSONStorage) load() []models.ScoreEntry {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read leaderboard file, treating as empty",
				"path", j.filePath,
				"error", err)
		}
		return []models.ScoreEntry{}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []models.ScoreEntry{}
	}

	var entries []models.ScoreEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Leaderboard file is corrupt, treating as empty",
			"path", j.filePath,
			"error", err)
		return []models.ScoreEntry{}
	}
	if entries == nil {
		entries = []models.ScoreEntry{}
	}
	return entries
}

// publish atomically replaces the canonical file with entries.
// Callers must hold j.mu.
func (j *JSONStorage) publish(entries []models.ScoreEntry) (err error) {
	if entries == nil {
		entries = []models.ScoreEntry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	dir := filepath.Dir(j.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "lb_*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = j.rename(tmpPath, j.filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
