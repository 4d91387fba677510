package leaderboard

import (
	"sort"

	"quiz-session-service/internal/models"
)

// Compute ranks players by score, highest first. Ties go to the player who
// joined earlier, so ranks are always a strict order. Deltas are relative to
// previous; a player missing from previous gets zero deltas.
func Compute(players []models.Player, previous []models.LeaderboardEntry) []models.LeaderboardEntry {
	sorted := append([]models.Player(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	prev := make(map[string]models.LeaderboardEntry, len(previous))
	for _, e := range previous {
		prev[e.PlayerID] = e
	}

	entries := make([]models.LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		entry := models.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
		}
		if before, ok := prev[p.ID]; ok {
			entry.RankDelta = before.Rank - entry.Rank
			entry.ScoreDelta = p.Score - before.Score
		}
		entries = append(entries, entry)
	}
	return entries
}

// RankOf returns the 1-based rank of playerID, or 0 if absent.
func RankOf(entries []models.LeaderboardEntry, playerID string) int {
	for _, e := range entries {
		if e.PlayerID == playerID {
			return e.Rank
		}
	}
	return 0
}

func less(a, b models.Player) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	if a.JoinOrder != b.JoinOrder {
		return a.JoinOrder < b.JoinOrder
	}
	return a.ID < b.ID
}
