// Package models provides core data structures for the leaderboard service.
// This file contains the score entry type persisted by every storage backend.
//
// Design Decisions:
// - Entries are values, never mutated after they are written
// - Normalization (trim, truncate, rounding, timestamp) happens once at write time
// - Timestamps are server-assigned, UTC, second precision
// - Equality is by value (name, score, timestamp) so it survives a reload
package models

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxStoredNameLength is the hard cap applied to names before they are persisted.
	MaxStoredNameLength = 32

	// DefaultMaxKeep is the default number of entries retained by a store.
	DefaultMaxKeep = 1000

	// DefaultTopN is the default size of the public leaderboard view.
	DefaultTopN = 10

	// DefaultMaxNameLength is the default display-length limit enforced on submit.
	DefaultMaxNameLength = 10

	// DefaultMaxScore is the default upper bound for a submitted score.
	DefaultMaxScore = 100000
)

// ScoreEntry is a single ranked leaderboard record.
type ScoreEntry struct {
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// NewScoreEntry builds a normalized entry: the name is trimmed and truncated,
// the score rounded to two decimals and the timestamp reduced to UTC seconds.
func NewScoreEntry(name string, score float64, now time.Time) ScoreEntry {
	return ScoreEntry{
		Name:      TruncateName(strings.TrimSpace(name), MaxStoredNameLength),
		Score:     RoundScore(score),
		Timestamp: now.UTC().Truncate(time.Second),
	}
}

// Equal reports whether two entries carry the same name, score and timestamp.
func (e ScoreEntry) Equal(other ScoreEntry) bool {
	return e.Name == other.Name &&
		e.Score == other.Score &&
		e.Timestamp.Equal(other.Timestamp)
}

// RoundScore rounds a score to two decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// TruncateName cuts name to at most max runes.
func TruncateName(name string, max int) string {
	if max <= 0 || utf8.RuneCountInString(name) <= max {
		return name
	}
	runes := []rune(name)
	return string(runes[:max])
}

// DisplayLength returns the number of characters a name shows as. Names are
// NFC-normalized first so a decomposed "å" counts once.
func DisplayLength(name string) int {
	return utf8.RuneCountInString(norm.NFC.String(name))
}

// SubmitResult is what a storage backend returns after persisting an entry.
type SubmitResult struct {
	Entry   ScoreEntry   // The normalized entry that was written
	Scores  []ScoreEntry // Public top-N view after the write
	MadeTop bool         // Whether Entry is part of Scores
}
