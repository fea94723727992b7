package models

import "time"

// Team is a bounded roster with numbered positions 1..MaxPlayers,
// scoped to a single match.
type Team struct {
	ID         int       `json:"id" db:"id"`
	MatchID    int       `json:"match_id" db:"match_id"`
	Name       string    `json:"name" db:"name"`
	MaxPlayers int       `json:"max_players" db:"max_players"`
	// CurrentPlayers is a cache recomputed from active assignments after
	// every mutation; the active rows are the ground truth.
	CurrentPlayers int       `json:"current_players" db:"current_players"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	Players            []TeamParticipant `json:"players,omitempty" db:"-"`
	AvailablePositions []int             `json:"available_positions,omitempty" db:"-"`
}

// TeamParticipant assigns a user to a numbered position on a team.
// Active rows are unique per (team_id, position) and per (match_id, user_id).
type TeamParticipant struct {
	ID       int       `json:"id" db:"id"`
	MatchID  int       `json:"match_id" db:"match_id"`
	TeamID   int       `json:"team_id" db:"team_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	Position int       `json:"position" db:"position"`
	Role     string    `json:"role,omitempty" db:"role"`
	IsActive bool      `json:"is_active" db:"is_active"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`

	User *User `json:"user,omitempty" db:"-"`
}
