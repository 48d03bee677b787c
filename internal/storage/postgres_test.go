package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresDSN returns the test database DSN, skipping when none is configured.
func postgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return dsn
}

// openPostgres connects to an emptied scores table.
func openPostgres(t *testing.T, maxKeep, topN int) *PostgresStorage {
	t.Helper()
	s, err := NewPostgresStorage(Config{ConnectionString: postgresDSN(t), MaxKeep: maxKeep, TopN: topN})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func truncateScores(t *testing.T, s *PostgresStorage) {
	t.Helper()
	_, err := s.pool.Exec(context.Background(), `TRUNCATE scores RESTART IDENTITY`)
	require.NoError(t, err)
}

func TestNewPostgresStorage_Errors(t *testing.T) {
	for name, dsn := range map[string]string{
		"empty dsn":       "",
		"unreachable dsn": "postgres://nobody@127.0.0.1:1/leaderboard?connect_timeout=1",
	} {
		t.Run(name, func(t *testing.T) {
			s, err := NewPostgresStorage(Config{ConnectionString: dsn})
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestPostgresStorage(t *testing.T) {
	postgresDSN(t)
	runStorageContract(t, func(t *testing.T, maxKeep, topN int, now func() time.Time) Storage {
		s := openPostgres(t, maxKeep, topN)
		truncateScores(t, s)
		s.now = now
		return s
	})
}

// Two pools stand in for two server processes sharing one database.
func TestPostgresStorage_WritersInSeparatePools(t *testing.T) {
	first := openPostgres(t, 100, 10)
	second := openPostgres(t, 100, 10)
	truncateScores(t, first)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i, s := range []*PostgresStorage{first, second} {
		wg.Add(1)
		go func(s *PostgresStorage, base int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.Submit(ctx, "writer", float64(base+j))
				assert.NoError(t, err)
			}
		}(s, i*100)
	}
	wg.Wait()

	all, err := first.Top(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 40)
	assert.Equal(t, float64(119), all[0].Score)
}
