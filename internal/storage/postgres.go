package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leaderboard/internal/models"
	"leaderboard/internal/ranking"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresLockKey namespaces the transaction-scoped advisory lock that
// serializes writers across every process sharing the database.
const postgresLockKey int64 = 0x6c6231 // "lb1"

const (
	postgresSchema = `CREATE TABLE IF NOT EXISTS scores (
		id         BIGSERIAL        PRIMARY KEY,
		name       TEXT             NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ      NOT NULL
	)`
	postgresIndex = `CREATE INDEX IF NOT EXISTS idx_scores_rank ON scores (score DESC, created_at DESC, id ASC)`

	postgresLock        = `SELECT pg_advisory_xact_lock($1)`
	postgresInsertScore = `INSERT INTO scores (name, score, created_at) VALUES ($1, $2, $3)`
	postgresTrimScores  = `DELETE FROM scores WHERE id NOT IN (
		SELECT id FROM scores ORDER BY score DESC, created_at DESC, id ASC LIMIT $1)`
	postgresTopScores = `SELECT name, score, created_at FROM scores
		ORDER BY score DESC, created_at DESC, id ASC LIMIT $1`
)

// PostgresStorage implements the Storage interface using PostgreSQL.
// Unlike the JSON backend it is safe to share between processes.
type PostgresStorage struct {
	pool    *pgxpool.Pool
	maxKeep int
	topN    int
	now     func() time.Time
}

// NewPostgresStorage creates a new PostgreSQL storage instance.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, errors.New("connection string is required for PostgreSQL storage")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range []string{postgresSchema, postgresIndex} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &PostgresStorage{
		pool:    pool,
		maxKeep: config.maxKeep(),
		topN:    config.topN(),
		now:     time.Now,
	}, nil
}

// Submit implements Storage.
func (ps *PostgresStorage) Submit(ctx context.Context, name string, score float64) (*models.SubmitResult, error) {
	if err := validateEntry(name, score); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := models.NewScoreEntry(name, score, ps.now())

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, postgresLock, postgresLockKey); err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock: %w", ErrWriteFailed, err)
	}
	if _, err := tx.Exec(ctx, postgresInsertScore, entry.Name, entry.Score, entry.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: failed to insert score: %w", ErrWriteFailed, err)
	}
	if _, err := tx.Exec(ctx, postgresTrimScores, ps.maxKeep); err != nil {
		return nil, fmt.Errorf("%w: failed to trim scores: %w", ErrWriteFailed, err)
	}

	top, err := queryPostgresTop(ctx, tx, ps.topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit: %w", ErrWriteFailed, err)
	}

	return &models.SubmitResult{
		Entry:   entry,
		Scores:  top,
		MadeTop: ranking.Contains(top, entry, ps.topN),
	}, nil
}

// Top implements Storage.
func (ps *PostgresStorage) Top(ctx context.Context, limit int) ([]models.ScoreEntry, error) {
	if limit <= 0 {
		return []models.ScoreEntry{}, nil
	}
	return queryPostgresTop(ctx, ps.pool, limit)
}

// Ping implements Storage.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPostgresTop(ctx context.Context, q pgQuerier, limit int) ([]models.ScoreEntry, error) {
	rows, err := q.Query(ctx, postgresTopScores, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ScoreEntry, 0, limit)
	for rows.Next() {
		var entry models.ScoreEntry
		if err := rows.Scan(&entry.Name, &entry.Score, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return entries, nil
}
