package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	// Not found
	ErrMatchNotFound = errors.New("match not found")
	ErrTeamNotFound  = errors.New("team not found")
	ErrUserNotFound  = errors.New("user not found")

	// Validation and business rules
	ErrValidationFailed      = errors.New("validation failed")
	ErrMatchTitleRequired    = errors.New("match title is required")
	ErrMatchInvalidSchedule  = errors.New("match scheduled time must be in the future")
	ErrMatchInvalidCapacity  = errors.New("match players needed must be positive")
	ErrTeamNameRequired      = errors.New("team name is required")
	ErrTeamInvalidMaxPlayers = errors.New("team max players must be positive")
	ErrInvalidTransition     = errors.New("invalid match status transition")
	ErrPositionOutOfRange    = errors.New("position is outside the team roster range")
	ErrNotJoined             = errors.New("user has not joined this match")
	ErrNotRostered           = errors.New("user holds no active team position in this match")

	// Capacity and conflicts: expected outcomes of contention, not faults
	ErrMatchFull        = errors.New("match roster is full")
	ErrMatchNotJoinable = errors.New("match is not open for joining")
	ErrAlreadyJoined    = errors.New("user already joined this match")
	ErrPositionTaken    = errors.New("position is already taken on this team")
	ErrAlreadyRostered  = errors.New("user already holds a team position in this match")
	ErrTeamNotInMatch   = errors.New("team does not belong to this match")

	// Contention: transient, retry with backoff
	ErrMatchBusy = errors.New("match is busy, try again")

	// Authentication and authorization
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrEmailConflict      = errors.New("email address is already in use")
	ErrNotMatchCreator    = errors.New("only the match creator can perform this action")
)
