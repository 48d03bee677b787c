package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"leaderboard/internal/models"
	"leaderboard/internal/ranking"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS scores (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL,
		score      REAL    NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_rank ON scores (score DESC, created_at DESC, id ASC)`,
}

// Ties on (score, created_at) fall back to id so earlier rows rank first.
const (
	sqliteInsertScore = `INSERT INTO scores (name, score, created_at) VALUES (?, ?, ?)`
	sqliteTrimScores  = `DELETE FROM scores WHERE id NOT IN (
		SELECT id FROM scores ORDER BY score DESC, created_at DESC, id ASC LIMIT ?)`
	sqliteTopScores = `SELECT name, score, created_at FROM scores
		ORDER BY score DESC, created_at DESC, id ASC LIMIT ?`
)

// SQLiteStorage implements the Storage interface on an SQLite database.
// The ranking order is expressed in SQL and the table is trimmed to MaxKeep
// rows inside the same transaction as every insert.
type SQLiteStorage struct {
	db      *sql.DB
	maxKeep int
	topN    int
	mu      sync.Mutex // single writer
	now     func() time.Time
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, errors.New("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &SQLiteStorage{
		db:      db,
		maxKeep: config.maxKeep(),
		topN:    config.topN(),
		now:     time.Now,
	}, nil
}

// Submit implements Storage.
func (ss *SQLiteStorage) Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error) {
	if err := validateEntry(name, score); err != nil {
		return nil, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := models.NewScoreEntry(name, score, ss.now())

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteInsertScore, entry.Name, entry.Score, entry.Timestamp.Unix()); err != nil {
		return nil, fmt.Errorf("%w: failed to insert score: %w", ErrWriteFailed, err)
	}
	if _, err := tx.ExecContext(ctx, sqliteTrimScores, ss.maxKeep); err != nil {
		return nil, fmt.Errorf("%w: failed to trim scores: %w", ErrWriteFailed, err)
	}

	top, err := querySQLiteTop(ctx, tx, ss.topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit: %w", ErrWriteFailed, err)
	}

	return &models.SubmitResult{
		Entry:   entry,
		Scores:  top,
		MadeTop: ranking.Contains(top, entry, ss.topN),
	}, nil
}

// Top implements Storage.
func (ss *SQLiteStorage) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	if limit <= 0 {
		return []models.ScoreEntry{}, nil
	}
	return querySQLiteTop(ctx, ss.db, limit)
}

// Ping implements Storage.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

type sqliteQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySQLiteTop(ctx context.Context, q sqliteQuerier, limit int) ([]models.ScoreEntry, error) {
	rows, err := q.QueryContext(ctx, sqliteTopScores, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ScoreEntry, 0, limit)
	for rows.Next() {
		var (
			entry     models.ScoreEntry
			createdAt int64
		)
		if err := rows.Scan(&entry.Name, &entry.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		entry.Timestamp = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return entries, nil
}
