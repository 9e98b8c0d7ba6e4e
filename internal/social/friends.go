package social

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

var (
	ErrUserNotFound = errors.New("social: user not found")
	ErrSelfFriend   = errors.New("social: cannot befriend yourself")
)

// FriendStore manages the symmetric friendship graph. Rows carry
// requester/addressee roles but every query treats the edge as
// bidirectional.
type FriendStore struct {
	db *sqlx.DB
}

// NewFriendStore creates a friend store.
func NewFriendStore(db *sqlx.DB) *FriendStore {
	return &FriendStore{db: db}
}

// SearchByUsername finds a user by exact username.
func (s *FriendStore) SearchByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, display_name, created_at, all_time_high, streak, last_play_date
		 FROM users WHERE username=$1`, username)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("search user %q: %w", username, err)
	}
	return &u, nil
}

// AddFriend records an accepted friendship. Adding an edge that
// already exists in either direction is a no-op.
func (s *FriendStore) AddFriend(ctx context.Context, selfID, friendID string) error {
	if selfID == friendID {
		return ErrSelfFriend
	}

	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
		   SELECT 1 FROM friendships
		   WHERE (requester_id=$1 AND addressee_id=$2)
		      OR (requester_id=$2 AND addressee_id=$1)
		 )`, selfID, friendID)
	if err != nil {
		return fmt.Errorf("check existing friendship: %w", err)
	}
	if exists {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO friendships (requester_id, addressee_id, status, created_at)
		 VALUES ($1, $2, $3, NOW())`, selfID, friendID, models.FriendshipAccepted)
	if err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	return nil
}

// RemoveFriend deletes the edge in whichever direction it was stored.
func (s *FriendStore) RemoveFriend(ctx context.Context, selfID, friendID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM friendships
		 WHERE (requester_id=$1 AND addressee_id=$2)
		    OR (requester_id=$2 AND addressee_id=$1)`, selfID, friendID)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return nil
}

// FriendIDs returns the accepted-friend id set of a user.
func (s *FriendStore) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT CASE WHEN requester_id=$1 THEN addressee_id ELSE requester_id END
		 FROM friendships
		 WHERE status=$2 AND (requester_id=$1 OR addressee_id=$1)`,
		userID, models.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friend ids for %s: %w", userID, err)
	}
	return ids, nil
}

// ListFriends returns the full user rows of a user's accepted friends,
// ordered by username for stable display.
func (s *FriendStore) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	var friends []models.User
	err := s.db.SelectContext(ctx, &friends,
		`SELECT u.id, u.username, u.display_name, u.created_at,
		        u.all_time_high, u.streak, u.last_play_date
		 FROM friendships f
		 JOIN users u
		   ON u.id = CASE WHEN f.requester_id=$1 THEN f.addressee_id ELSE f.requester_id END
		 WHERE f.status=$2 AND (f.requester_id=$1 OR f.addressee_id=$1)
		 ORDER BY u.username`,
		userID, models.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friends for %s: %w", userID, err)
	}
	return friends, nil
}
