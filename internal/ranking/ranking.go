// Package ranking defines the total order and retention policy of the
// leaderboard. Every function is pure: inputs are never mutated.
//
// Order: score descending, then timestamp descending (a later submission of
// an equal score ranks higher). Entries equal on both keys keep their
// relative insertion order.
package ranking

import (
	"slices"

	"leaderboard/internal/models"
)

// Compare orders a before b when it ranks higher. It returns a negative
// number when a ranks higher, positive when b does and zero on a tie.
func Compare(a, b models.ScoreEntry) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return b.Timestamp.Compare(a.Timestamp)
}

// Sort returns a ranked copy of entries.
func Sort(entries []models.ScoreEntry) []models.ScoreEntry {
	ranked := slices.Clone(entries)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Insert appends entry, re-ranks and truncates to maxKeep entries. Entries
// pushed past the cap are discarded. A non-positive maxKeep keeps everything.
func Insert(entries []models.ScoreEntry, entry models.ScoreEntry, maxKeep int) []models.ScoreEntry {
	ranked := make([]models.ScoreEntry, 0, len(entries)+1)
	ranked = append(ranked, entries...)
	ranked = append(ranked, entry)
	slices.SortStableFunc(ranked, Compare)
	return Truncate(ranked, maxKeep)
}

// Truncate drops everything past the first maxKeep entries.
func Truncate(entries []models.ScoreEntry, maxKeep int) []models.ScoreEntry {
	if maxKeep <= 0 || len(entries) <= maxKeep {
		return entries
	}
	return entries[:maxKeep:maxKeep]
}

// Top returns a copy of the first n entries of an already ranked collection.
// n is clamped to [0, len(entries)].
func Top(entries []models.ScoreEntry, n int) []models.ScoreEntry {
	n = max(0, min(n, len(entries)))
	return slices.Clone(entries[:n])
}

// Contains reports whether an entry equal to target by value sits in the
// first n entries of the ranked collection.
func Contains(entries []models.ScoreEntry, target models.ScoreEntry, n int) bool {
	n = max(0, min(n, len(entries)))
	for _, e := range entries[:n] {
		if e.Equal(target) {
			return true
		}
	}
	return false
}

// IsRanked reports whether entries already satisfy the ranking order.
func IsRanked(entries []models.ScoreEntry) bool {
	return slices.IsSortedFunc(entries, Compare)
}
