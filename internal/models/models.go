package models

import (
	"database/sql"
	"time"
)

// User represents a registered player
type User struct {
	ID           string       `db:"id" json:"id"`
	Username     string       `db:"username" json:"username"`
	DisplayName  string       `db:"display_name" json:"display_name"`
	PasswordHash string       `db:"password_hash" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	AllTimeHigh  int          `db:"all_time_high" json:"all_time_high"`
	Streak       int          `db:"streak" json:"streak"`
	LastPlayDate sql.NullTime `db:"last_play_date" json:"last_play_date,omitempty"`
}

// UserStats is the slice of a user record the reconciler owns. The
// three fields are always read and written together.
type UserStats struct {
	UserID       string     `json:"user_id"`
	AllTimeHigh  int        `json:"all_time_high"`
	Streak       int        `json:"streak"`
	LastPlayDate *time.Time `json:"last_play_date,omitempty"`
}

// Friendship represents an accepted friend edge. Requester/addressee
// roles are storage detail only; the relation is symmetric.
type Friendship struct {
	ID          int       `db:"id" json:"id"`
	RequesterID string    `db:"requester_id" json:"requester_id"`
	AddresseeID string    `db:"addressee_id" json:"addressee_id"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Friendship statuses
const (
	FriendshipAccepted = "accepted"
)

// LeaderboardEntry is a derived ranking row, never persisted.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}
