package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/matchday-app/matchday-system/models"
	"github.com/matchday-app/matchday-system/repositories"
)

// Broadcaster pushes live events to websocket rooms. Satisfied by
// *realtime.Hub; nil disables broadcasting (tests).
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// MatchRoomID is the websocket room for a match's live feed.
func MatchRoomID(matchID int) string {
	return "match_" + strconv.Itoa(matchID)
}

// MatchEvent is what gets broadcast to a match room.
type MatchEvent struct {
	Type    string      `json:"type"`
	MatchID int         `json:"match_id"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventMatchUpdated      = "MATCH_UPDATED"
	EventParticipantJoined = "PARTICIPANT_JOINED"
	EventParticipantLeft   = "PARTICIPANT_LEFT"
	EventTeamUpdated       = "TEAM_UPDATED"
)

type TeamSpec struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
}

type CreateMatchInput struct {
	Title         string     `json:"title"`
	Location      *string    `json:"location"`
	Venue         *string    `json:"venue"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	PlayersNeeded int        `json:"players_needed"`
	Teams         []TeamSpec `json:"teams"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error)
	Join(ctx context.Context, matchID, userID int) (*models.Match, error)
	Leave(ctx context.Context, matchID, userID int) (*models.Match, error)
	Start(ctx context.Context, matchID, callerID int) (*models.Match, error)
	End(ctx context.Context, matchID, callerID int, resultSummary *string) (*models.Match, error)
	Cancel(ctx context.Context, matchID, callerID int, reason *string) (*models.Match, error)
	Postpone(ctx context.Context, matchID, callerID int, newSchedule time.Time, reason *string) (*models.Match, error)
	DeleteMatch(ctx context.Context, matchID, callerID int) error
}

type matchService struct {
	tx              repositories.Transactor
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	teamRepo        repositories.TeamRepository
	assignmentRepo  repositories.TeamParticipantRepository
	userRepo        repositories.UserRepository
	locks           *MatchLocks
	clock           Clock
	hub             Broadcaster
	logger          *slog.Logger
	lockTimeout     time.Duration
}

func NewMatchService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	teamRepo repositories.TeamRepository,
	assignmentRepo repositories.TeamParticipantRepository,
	userRepo repositories.UserRepository,
	hub Broadcaster,
	locks *MatchLocks,
	clock Clock,
	logger *slog.Logger,
	lockTimeout time.Duration,
) MatchService {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = NewMatchLocks()
	}
	return &matchService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		teamRepo:        teamRepo,
		assignmentRepo:  assignmentRepo,
		userRepo:        userRepo,
		locks:           locks,
		clock:           clock,
		hub:             hub,
		logger:          logger,
		lockTimeout:     lockTimeout,
	}
}

func (s *matchService) broadcast(matchID int, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(MatchRoomID(matchID), MatchEvent{
		Type:    eventType,
		MatchID: matchID,
		Payload: payload,
	})
}

// withMatchLock runs fn while holding the match's single-writer lock.
func (s *matchService) withMatchLock(ctx context.Context, matchID int, fn func() error) error {
	release, err := s.locks.Acquire(ctx, matchID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// loadMatch translates the repository's not-found into the service sentinel.
func (s *matchService) loadMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}

func (s *matchService) CreateMatch(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error) {
	if input.Title == "" {
		return nil, ErrMatchTitleRequired
	}
	if input.PlayersNeeded <= 0 {
		return nil, ErrMatchInvalidCapacity
	}
	now := s.clock.Now()
	if !input.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: got %s", ErrMatchInvalidSchedule, input.ScheduledAt.Format(time.RFC3339))
	}
	for _, spec := range input.Teams {
		if spec.Name == "" {
			return nil, ErrTeamNameRequired
		}
		if spec.MaxPlayers <= 0 {
			return nil, ErrTeamInvalidMaxPlayers
		}
	}

	exists, err := s.userRepo.Exists(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check creator %d: %w", creatorID, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	match := &models.Match{
		CreatorID:     creatorID,
		Title:         input.Title,
		Location:      input.Location,
		Venue:         input.Venue,
		ScheduledAt:   input.ScheduledAt,
		Status:        models.StatusUpcoming,
		PlayersNeeded: input.PlayersNeeded,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return err
		}
		for _, spec := range input.Teams {
			team := models.Team{
				MatchID:    match.ID,
				Name:       spec.Name,
				MaxPlayers: spec.MaxPlayers,
			}
			if err := s.teamRepo.Create(ctx, exec, &team); err != nil {
				return err
			}
			team.AvailablePositions = AvailablePositions(team.MaxPlayers, nil)
			match.Teams = append(match.Teams, team)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	match.SpotsAvailable = match.PlayersNeeded
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.loadMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	// Views are best-effort; a failed bump never fails the read.
	if err := s.matchRepo.IncrementViews(ctx, matchID); err != nil {
		s.logger.WarnContext(ctx, "failed to increment match views",
			slog.Int("match_id", matchID), slog.Any("error", err))
	} else {
		match.TotalViews++
	}

	if err := s.populateRosters(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) populateRosters(ctx context.Context, match *models.Match) error {
	participants, err := s.participantRepo.ListByMatch(ctx, nil, match.ID)
	if err != nil {
		return fmt.Errorf("failed to load participants for match %d: %w", match.ID, err)
	}
	match.Participants = participants
	match.SpotsAvailable = match.PlayersNeeded - len(participants)
	if match.SpotsAvailable < 0 {
		match.SpotsAvailable = 0
	}
	match.IsFull = len(participants) >= match.PlayersNeeded

	teams, err := s.teamRepo.ListByMatch(ctx, nil, match.ID)
	if err != nil {
		return fmt.Errorf("failed to load teams for match %d: %w", match.ID, err)
	}
	for i := range teams {
		active, err := s.assignmentRepo.ListActiveByTeam(ctx, nil, teams[i].ID)
		if err != nil {
			return fmt.Errorf("failed to load roster for team %d: %w", teams[i].ID, err)
		}
		teams[i].Players = active
		teams[i].CurrentPlayers = len(active)
		teams[i].AvailablePositions = AvailablePositions(teams[i].MaxPlayers, active)
	}
	match.Teams = teams
	return nil
}

func (s *matchService) ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	matches, err := s.matchRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *matchService) Join(ctx context.Context, matchID, userID int) (*models.Match, error) {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	var updated *models.Match
	var filled bool
	err = s.withMatchLock(ctx, matchID, func() error {
		return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.loadMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}

			// Joining is legal only while the match is not yet full.
			if match.Status != models.StatusUpcoming {
				if match.Status == models.StatusFull {
					return ErrMatchFull
				}
				return fmt.Errorf("%w: match %d is %q", ErrMatchNotJoinable, matchID, match.Status)
			}

			if _, err := s.participantRepo.FindByMatchAndUser(ctx, exec, matchID, userID); err == nil {
				return ErrAlreadyJoined
			} else if !errors.Is(err, repositories.ErrParticipantNotFound) {
				return err
			}

			count, err := s.participantRepo.CountByMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}
			if count >= match.PlayersNeeded {
				return ErrMatchFull
			}

			p := &models.Participant{MatchID: matchID, UserID: userID}
			if err := s.participantRepo.Create(ctx, exec, p); err != nil {
				if errors.Is(err, repositories.ErrParticipantConflict) {
					return ErrAlreadyJoined
				}
				return err
			}

			now := s.clock.Now()
			match.TotalJoined++
			match.TotalInterested++
			if count+1 == match.PlayersNeeded {
				if err := ApplyTransition(match, TriggerFill, now); err != nil {
					return err
				}
				filled = true
			} else {
				match.LastUpdatedAt = now
			}

			if err := s.matchRepo.Update(ctx, exec, match); err != nil {
				return err
			}
			updated = match
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(matchID, EventParticipantJoined, map[string]interface{}{"user_id": userID, "status": updated.Status})
	if filled {
		s.broadcast(matchID, EventMatchUpdated, updated)
	}
	return updated, nil
}

func (s *matchService) Leave(ctx context.Context, matchID, userID int) (*models.Match, error) {
	var updated *models.Match
	var reopened bool
	err := s.withMatchLock(ctx, matchID, func() error {
		return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.loadMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}

			if _, err := s.participantRepo.FindByMatchAndUser(ctx, exec, matchID, userID); err != nil {
				if errors.Is(err, repositories.ErrParticipantNotFound) {
					return ErrNotJoined
				}
				return err
			}
			if err := s.participantRepo.Delete(ctx, exec, matchID, userID); err != nil {
				return err
			}

			count, err := s.participantRepo.CountByMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			match.TotalLeft++
			if match.Status == models.StatusFull && count < match.PlayersNeeded {
				if err := ApplyTransition(match, TriggerReopen, now); err != nil {
					return err
				}
				reopened = true
			} else {
				match.LastUpdatedAt = now
			}

			if err := s.matchRepo.Update(ctx, exec, match); err != nil {
				return err
			}
			updated = match
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(matchID, EventParticipantLeft, map[string]interface{}{"user_id": userID, "status": updated.Status})
	if reopened {
		s.broadcast(matchID, EventMatchUpdated, updated)
	}
	return updated, nil
}

// transitionAsCreator is the shared path for the manual lifecycle triggers:
// lock, load, authorize, mutate via the state machine, write back atomically.
func (s *matchService) transitionAsCreator(ctx context.Context, matchID, callerID int, trigger MatchTrigger, mutate func(match *models.Match, now time.Time)) (*models.Match, error) {
	var updated *models.Match
	err := s.withMatchLock(ctx, matchID, func() error {
		return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.loadMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}
			if match.CreatorID != callerID {
				return ErrNotMatchCreator
			}

			now := s.clock.Now()
			if err := ApplyTransition(match, trigger, now); err != nil {
				return err
			}
			if mutate != nil {
				mutate(match, now)
			}

			if err := s.matchRepo.Update(ctx, exec, match); err != nil {
				return err
			}
			updated = match
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(matchID, EventMatchUpdated, updated)
	return updated, nil
}

func (s *matchService) Start(ctx context.Context, matchID, callerID int) (*models.Match, error) {
	return s.transitionAsCreator(ctx, matchID, callerID, TriggerStart, nil)
}

func (s *matchService) End(ctx context.Context, matchID, callerID int, resultSummary *string) (*models.Match, error) {
	return s.transitionAsCreator(ctx, matchID, callerID, TriggerEnd, func(match *models.Match, _ time.Time) {
		if resultSummary != nil {
			match.ResultSummary = resultSummary
		}
	})
}

func (s *matchService) Cancel(ctx context.Context, matchID, callerID int, reason *string) (*models.Match, error) {
	return s.transitionAsCreator(ctx, matchID, callerID, TriggerCancel, func(match *models.Match, _ time.Time) {
		if reason != nil {
			match.ResultSummary = reason
		}
	})
}

func (s *matchService) Postpone(ctx context.Context, matchID, callerID int, newSchedule time.Time, reason *string) (*models.Match, error) {
	if newSchedule.IsZero() {
		return nil, fmt.Errorf("%w: new schedule is required", ErrValidationFailed)
	}
	return s.transitionAsCreator(ctx, matchID, callerID, TriggerPostpone, func(match *models.Match, _ time.Time) {
		match.ScheduledAt = newSchedule
		if reason != nil {
			match.ResultSummary = reason
		}
	})
}

func (s *matchService) DeleteMatch(ctx context.Context, matchID, callerID int) error {
	return s.withMatchLock(ctx, matchID, func() error {
		return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.loadMatch(ctx, exec, matchID)
			if err != nil {
				return err
			}
			if match.CreatorID != callerID {
				return ErrNotMatchCreator
			}
			if err := s.matchRepo.DeleteCascade(ctx, exec, matchID); err != nil {
				return fmt.Errorf("failed to delete match %d: %w", matchID, err)
			}
			return nil
		})
	})
}
