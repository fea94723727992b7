package models

import "time"

// Participant is a simple roster entry, unique per (match_id, user_id).
type Participant struct {
	ID       int       `json:"id" db:"id"`
	MatchID  int       `json:"match_id" db:"match_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`

	User *User `json:"user,omitempty" db:"-"`
}
