package models

import "time"

// MatchStatus represents match lifecycle states, matching the ENUM in the DB.
type MatchStatus string

const (
	StatusUpcoming  MatchStatus = "upcoming"
	StatusFull      MatchStatus = "full"
	StatusLive      MatchStatus = "live"
	StatusCompleted MatchStatus = "completed"
	StatusCancelled MatchStatus = "cancelled"
	StatusPostponed MatchStatus = "postponed"
)

// IsTerminal reports whether no transition can ever leave the status.
func (s MatchStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s MatchStatus) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusFull, StatusLive, StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// Match is a scheduled event with a capacity-bounded roster.
type Match struct {
	ID            int         `json:"id" db:"id"`
	CreatorID     int         `json:"creator_id" db:"creator_id"`
	Title         string      `json:"title" db:"title"`
	Location      *string     `json:"location,omitempty" db:"location"`
	Venue         *string     `json:"venue,omitempty" db:"venue"`
	ScheduledAt   time.Time   `json:"scheduled_at" db:"scheduled_at"`
	Status        MatchStatus `json:"status" db:"status"`
	PlayersNeeded int         `json:"players_needed" db:"players_needed"`

	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	ResultSummary *string    `json:"result_summary,omitempty" db:"result_summary"`

	TotalJoined     int       `json:"total_joined" db:"total_joined"`
	TotalLeft       int       `json:"total_left" db:"total_left"`
	TotalViews      int       `json:"total_views" db:"total_views"`
	TotalInterested int       `json:"total_interested" db:"total_interested"`
	UpdateCount     int       `json:"update_count" db:"update_count"`
	LastUpdatedAt   time.Time `json:"last_updated_at" db:"last_updated_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	// Optional nested entities (not mapped directly)
	Creator      *User         `json:"creator,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Teams        []Team        `json:"teams,omitempty" db:"-"`

	SpotsAvailable int  `json:"spots_available" db:"-"`
	IsFull         bool `json:"is_full" db:"-"`
}

// ActualDuration returns how long the match ran, once both timestamps exist.
func (m *Match) ActualDuration() *time.Duration {
	if m.StartedAt == nil || m.EndedAt == nil {
		return nil
	}
	d := m.EndedAt.Sub(*m.StartedAt)
	return &d
}
