package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leaderboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONTestStorage(t *testing.T, path string) *JSONStorage {
	t.Helper()
	s, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func readEntries(t *testing.T, path string) []models.ScoreEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []models.ScoreEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "lb_*.json"))
	require.NoError(t, err)
	return matches
}

func TestJSONStorage(t *testing.T) {
	runStorageContract(t, func(t *testing.T, maxKeep, topN int, now func() time.Time) Storage {
		s, err := NewJSONStorage(Config{
			Path:    filepath.Join(t.TempDir(), "leaderboard.json"),
			MaxKeep: maxKeep,
			TopN:    topN,
		})
		require.NoError(t, err)
		s.now = now
		return s
	})
}

func TestNewJSONStorage(t *testing.T) {
	t.Run("CreatesFileAndDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog", "nested", "leaderboard.json")
		newJSONTestStorage(t, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("KeepsExistingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "leaderboard.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"name":"kept","score":5,"timestamp":"2026-01-01T00:00:00Z"}]`), 0600))

		s := newJSONTestStorage(t, path)
		top, err := s.Top(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "kept", top[0].Name)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := NewJSONStorage(Config{})
		assert.Error(t, err)
	})

	t.Run("PathIsDirectory", func(t *testing.T) {
		_, err := NewJSONStorage(Config{Path: t.TempDir()})
		assert.Error(t, err)
	})
}

func TestJSONStorage_PersistsRankedArray(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	s := newJSONTestStorage(t, path)
	s.now = steppingClock(testEpoch)

	for i, score := range []float64{10, 30, 20} {
		_, err := s.Submit(ctx, fmt.Sprintf("p%d", i), score)
		require.NoError(t, err)
	}

	entries := readEntries(t, path)
	assert.Equal(t, []float64{30, 20, 10}, scoresOf(entries))

	// A second instance sees what the first published.
	other := newJSONTestStorage(t, path)
	top, err := other.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, entries, top)
}

func TestJSONStorage_DegradedReads(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		content string
	}{
		{"Corrupt", `{not json`},
		{"Empty", ``},
		{"Whitespace", "  \n"},
		{"WrongShape", `{"scores": []}`},
		{"Null", `null`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "leaderboard.json")
			s := newJSONTestStorage(t, path)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0600))

			top, err := s.Top(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, top)

			// The next write replaces the bad file with a valid one.
			result, err := s.Submit(ctx, "fresh", 1)
			require.NoError(t, err)
			assert.True(t, result.MadeTop)
			assert.Len(t, readEntries(t, path), 1)
		})
	}
}

func TestJSONStorage_MissingFileAfterStart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "catalog")
	path := filepath.Join(dir, "leaderboard.json")
	s := newJSONTestStorage(t, path)

	require.NoError(t, os.RemoveAll(dir))

	top, err := s.Top(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	_, err = s.Submit(ctx, "back", 3)
	require.NoError(t, err)
	assert.Len(t, readEntries(t, path), 1)
}

func TestJSONStorage_UnorderedFileIsRankedOnRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	content := `[
		{"name":"low","score":1,"timestamp":"2026-01-01T00:00:00Z"},
		{"name":"high","score":9,"timestamp":"2026-01-01T00:00:00Z"},
		{"name":"mid","score":5,"timestamp":"2026-01-01T00:00:00Z"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	s := newJSONTestStorage(t, path)

	top, err := s.Top(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid"}, namesOf(top))
}

func TestJSONStorage_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newJSONTestStorage(t, filepath.Join(dir, "leaderboard.json"))

	for i := 0; i < 5; i++ {
		_, err := s.Submit(ctx, "p", float64(i))
		require.NoError(t, err)
	}

	assert.Empty(t, tempFiles(t, dir))
}

func TestJSONStorage_WriteFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "leaderboard.json")
	s := newJSONTestStorage(t, path)

	// Replace the file with a non-empty directory so the final rename fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0700))

	_, err := s.Submit(ctx, "lost", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Empty(t, tempFiles(t, dir))
}

func TestJSONStorage_FailedPublishKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "leaderboard.json")
	s := newJSONTestStorage(t, path)

	_, err := s.Submit(ctx, "alice", 200)
	require.NoError(t, err)
	_, err = s.Submit(ctx, "bob", 100)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	s.rename = func(oldpath, newpath string) error {
		return errors.New("disk full")
	}

	_, err = s.Submit(ctx, "carol", 300)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Name)
	assert.Equal(t, "bob", entries[1].Name)
	assert.Empty(t, tempFiles(t, dir))

	top, err := s.Top(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestJSONStorage_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	s := newJSONTestStorage(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, "late", 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, readEntries(t, path))
}

func TestJSONStorage_InstancesShareFileLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	a := newJSONTestStorage(t, path)
	b := newJSONTestStorage(t, path)

	const perInstance = 15
	var wg sync.WaitGroup
	for _, s := range []*JSONStorage{a, b} {
		for i := 0; i < perInstance; i++ {
			wg.Add(1)
			go func(s *JSONStorage, i int) {
				defer wg.Done()
				_, err := s.Submit(ctx, fmt.Sprintf("p%d", i), float64(i))
				assert.NoError(t, err)
			}(s, i)
		}
	}
	wg.Wait()

	assert.Len(t, readEntries(t, path), 2*perInstance)
}

func TestJSONStorage_ConcurrentReadsSeeWholeFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	s := newJSONTestStorage(t, path)

	done := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				data, err := os.ReadFile(path)
				if !assert.NoError(t, err) {
					return
				}
				var entries []models.ScoreEntry
				if !assert.NoError(t, json.Unmarshal(data, &entries)) {
					return
				}
			}
		}()
	}

	for i := 0; i < 30; i++ {
		_, err := s.Submit(ctx, "w", float64(i))
		require.NoError(t, err)
	}
	close(done)
	readers.Wait()
}
