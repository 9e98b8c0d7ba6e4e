package leaderboard

import (
	"sort"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// Member is one scored candidate for ranking.
type Member struct {
	UserID      string
	Username    string
	DisplayName string
	Score       int
}

// Rank orders members by score descending with username ascending as
// the tie-break, so identical score sets always rank identically.
// Ranks are dense and 1-based: ties still take successive ranks.
// Truncation to limit happens after sorting, never before; limit <= 0
// means no truncation.
func Rank(members []Member, limit int) []models.LeaderboardEntry {
	sorted := make([]Member, len(members))
	copy(sorted, members)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Username < sorted[j].Username
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]models.LeaderboardEntry, len(sorted))
	for i, m := range sorted {
		entries[i] = models.LeaderboardEntry{
			UserID:      m.UserID,
			Username:    m.Username,
			DisplayName: m.DisplayName,
			Score:       m.Score,
			Rank:        i + 1,
		}
	}
	return entries
}
