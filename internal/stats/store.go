package stats

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// LeaderboardKey is the Redis ZSet mirroring all-time-highs by user ID.
const LeaderboardKey = "leaderboard:alltimehigh"

// UserStore persists stats in Postgres and mirrors high scores into a
// Redis ZSet for cheap leaderboard reads. Postgres is authoritative;
// a Redis failure is logged and never fails the write.
type UserStore struct {
	db  *sqlx.DB
	rdb *redis.Client
}

// NewUserStore creates a store. rdb may be nil (no mirror).
func NewUserStore(db *sqlx.DB, rdb *redis.Client) *UserStore {
	return &UserStore{db: db, rdb: rdb}
}

// Get reads the stats slice of a user record.
func (s *UserStore) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row,
		`SELECT id, all_time_high, streak, last_play_date FROM users WHERE id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get stats for user %s: %w", userID, err)
	}
	stats := &models.UserStats{
		UserID:      row.ID,
		AllTimeHigh: row.AllTimeHigh,
		Streak:      row.Streak,
	}
	if row.LastPlayDate.Valid {
		t := row.LastPlayDate.Time
		stats.LastPlayDate = &t
	}
	return stats, nil
}

// Write applies the whole stats record in a single UPDATE so the
// high-score and streak halves can never be applied separately.
func (s *UserStore) Write(ctx context.Context, stats models.UserStats) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET all_time_high=$1, streak=$2, last_play_date=$3 WHERE id=$4`,
		stats.AllTimeHigh, stats.Streak, stats.LastPlayDate, stats.UserID)
	if err != nil {
		return fmt.Errorf("write stats for user %s: %w", stats.UserID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("write stats: user %s not found", stats.UserID)
	}

	if s.rdb != nil {
		err := s.rdb.ZAdd(ctx, LeaderboardKey, redis.Z{
			Score:  float64(stats.AllTimeHigh),
			Member: stats.UserID,
		}).Err()
		if err != nil {
			log.Printf("[STATS] Redis leaderboard mirror failed for user %s: %v", stats.UserID, err)
		}
	}
	return nil
}

// HighScores returns all-time-highs for a set of user IDs, batching
// the IN queries. Members missing from the table score 0.
func (s *UserStore) HighScores(ctx context.Context, userIDs []string, batchSize int) (map[string]int, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	scores := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		scores[id] = 0
	}
	for start := 0; start < len(userIDs); start += batchSize {
		end := start + batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		query, args, err := sqlx.In(
			`SELECT id, all_time_high FROM users WHERE id IN (?)`, userIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("build high-score batch: %w", err)
		}
		var rows []struct {
			ID          string `db:"id"`
			AllTimeHigh int    `db:"all_time_high"`
		}
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("fetch high-score batch: %w", err)
		}
		for _, r := range rows {
			scores[r.ID] = r.AllTimeHigh
		}
	}
	return scores, nil
}

// UsersByIDs loads display fields for a set of user IDs, batched the
// same way as HighScores.
func (s *UserStore) UsersByIDs(ctx context.Context, userIDs []string, batchSize int) (map[string]models.User, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	users := make(map[string]models.User, len(userIDs))
	for start := 0; start < len(userIDs); start += batchSize {
		end := start + batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		query, args, err := sqlx.In(
			`SELECT id, username, display_name, created_at, all_time_high, streak, last_play_date
			 FROM users WHERE id IN (?)`, userIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("build users batch: %w", err)
		}
		var rows []models.User
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("fetch users batch: %w", err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}
	return users, nil
}

// TopHighScores returns the top scorers as (userID, allTimeHigh)
// pairs in descending score order. It serves from the Redis mirror
// when available and falls back to Postgres. The result may exceed
// limit: a tie group straddling the cutoff is returned whole, so the
// caller's ordering decides which tied members make the final cut.
func (s *UserStore) TopHighScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if s.rdb != nil {
		entries, err := s.topFromMirror(ctx, limit)
		if err != nil {
			log.Printf("[STATS] Redis leaderboard read failed, falling back to Postgres: %v", err)
		} else if len(entries) > 0 {
			return entries, nil
		}
	}

	var rows []models.User
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, username, display_name, all_time_high FROM users
		 ORDER BY all_time_high DESC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch top high scores: %w", err)
	}
	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, u := range rows {
		entries = append(entries, models.LeaderboardEntry{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Score:       u.AllTimeHigh,
		})
	}
	return entries, nil
}

// topFromMirror reads the top of the ZSet. The ZSet orders equal
// scores by member id, not username, so when the cutoff lands inside
// a tie group the remaining members at that score are fetched too.
func (s *UserStore) topFromMirror(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	results, err := s.rdb.ZRevRangeWithScores(ctx, LeaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) == limit {
		boundary := strconv.FormatFloat(results[len(results)-1].Score, 'f', -1, 64)
		ties, err := s.rdb.ZRangeByScoreWithScores(ctx, LeaderboardKey,
			&redis.ZRangeBy{Min: boundary, Max: boundary}).Result()
		if err != nil {
			return nil, err
		}
		results = mergeBoundaryTies(results, ties)
	}

	entries := make([]models.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{UserID: id, Score: int(z.Score)})
	}
	return entries, nil
}

// mergeBoundaryTies appends cutoff-score members missing from the top
// slice, completing the tie group the range read may have split.
func mergeBoundaryTies(top, ties []redis.Z) []redis.Z {
	seen := make(map[interface{}]struct{}, len(top))
	for _, z := range top {
		seen[z.Member] = struct{}{}
	}
	for _, z := range ties {
		if _, ok := seen[z.Member]; !ok {
			top = append(top, z)
		}
	}
	return top
}

// RebuildLeaderboardMirror repopulates the Redis ZSet from Postgres.
// Called on startup so the mirror survives Redis flushes.
func (s *UserStore) RebuildLeaderboardMirror(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	var rows []struct {
		ID          string `db:"id"`
		AllTimeHigh int    `db:"all_time_high"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, all_time_high FROM users WHERE all_time_high > 0`); err != nil {
		return fmt.Errorf("load high scores for mirror rebuild: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(rows))
	for _, r := range rows {
		zs = append(zs, redis.Z{Score: float64(r.AllTimeHigh), Member: r.ID})
	}
	if err := s.rdb.ZAdd(ctx, LeaderboardKey, zs...).Err(); err != nil {
		return fmt.Errorf("rebuild leaderboard mirror: %w", err)
	}
	log.Printf("[STATS] Leaderboard mirror rebuilt with %d entries", len(zs))
	return nil
}
