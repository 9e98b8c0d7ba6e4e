package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// DefaultLimit caps leaderboard views when callers pass no limit.
const DefaultLimit = 100

// ScoreSource supplies persisted high scores and user display fields.
// *stats.UserStore is the production implementation.
type ScoreSource interface {
	TopHighScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	HighScores(ctx context.Context, userIDs []string, batchSize int) (map[string]int, error)
	UsersByIDs(ctx context.Context, userIDs []string, batchSize int) (map[string]models.User, error)
}

// FriendSource supplies the accepted-friend id set of a user.
type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

// Service produces ranked leaderboard views over the persisted
// population.
type Service struct {
	scores    ScoreSource
	friends   FriendSource
	batchSize int
}

// NewService creates a leaderboard service. batchSize bounds each id
// batch sent to the score source.
func NewService(scores ScoreSource, friends FriendSource, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Service{scores: scores, friends: friends, batchSize: batchSize}
}

// Global returns the top players across all users.
func (s *Service) Global(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	top, err := s.scores.TopHighScores(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("global leaderboard: %w", err)
	}

	members := make([]Member, 0, len(top))
	missing := make([]string, 0)
	for _, e := range top {
		if e.Username == "" {
			missing = append(missing, e.UserID)
		}
		members = append(members, Member{
			UserID:      e.UserID,
			Username:    e.Username,
			DisplayName: e.DisplayName,
			Score:       e.Score,
		})
	}

	// Entries served from the score mirror carry ids only; hydrate
	// usernames so the tie-break has something to compare.
	if len(missing) > 0 {
		users, err := s.scores.UsersByIDs(ctx, missing, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("global leaderboard: %w", err)
		}
		for i := range members {
			if u, ok := users[members[i].UserID]; ok && members[i].Username == "" {
				members[i].Username = u.Username
				members[i].DisplayName = u.DisplayName
			}
		}
	}

	return Rank(members, limit), nil
}

// Friends returns the leaderboard over the caller's accepted friends,
// always including the caller. Friends with no recorded stats appear
// with score 0 rather than being excluded.
func (s *Service) Friends(ctx context.Context, userID string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ids, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("friends leaderboard: %w", err)
	}

	memberIDs := uniqueWithSelf(ids, userID)
	scores, err := s.scores.HighScores(ctx, memberIDs, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("friends leaderboard: %w", err)
	}
	users, err := s.scores.UsersByIDs(ctx, memberIDs, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("friends leaderboard: %w", err)
	}

	members := make([]Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		m := Member{UserID: id, Score: scores[id]}
		if u, ok := users[id]; ok {
			m.Username = u.Username
			m.DisplayName = u.DisplayName
		}
		members = append(members, m)
	}
	return Rank(members, limit), nil
}

// uniqueWithSelf dedupes ids and guarantees self is a member. Sorted
// so batch boundaries are stable across calls.
func uniqueWithSelf(ids []string, self string) []string {
	set := make(map[string]struct{}, len(ids)+1)
	set[self] = struct{}{}
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
