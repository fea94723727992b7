package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matchday-app/matchday-system/models"
	"github.com/matchday-app/matchday-system/repositories"
	"github.com/matchday-app/matchday-system/storage"
)

// AvailablePositions returns {1..maxPlayers} minus the positions held by
// active assignments. Pure; used both for validation and for snapshots.
func AvailablePositions(maxPlayers int, active []models.TeamParticipant) []int {
	occupied := make(map[int]bool, len(active))
	for _, tp := range active {
		occupied[tp.Position] = true
	}
	available := make([]int, 0, maxPlayers)
	for pos := 1; pos <= maxPlayers; pos++ {
		if !occupied[pos] {
			available = append(available, pos)
		}
	}
	return available
}

type TeamService interface {
	JoinTeam(ctx context.Context, matchID, teamID, userID, position int, role string) (*models.Team, error)
	LeaveTeam(ctx context.Context, matchID, userID int) (*models.Team, error)
	GetAvailablePositions(ctx context.Context, teamID int) ([]int, error)
	UploadTeamLogo(ctx context.Context, teamID, callerID int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	tx             repositories.Transactor
	matchRepo      repositories.MatchRepository
	teamRepo       repositories.TeamRepository
	assignmentRepo repositories.TeamParticipantRepository
	userRepo       repositories.UserRepository
	uploader       storage.FileUploader
	locks          *MatchLocks
	hub            Broadcaster
	lockTimeout    time.Duration
}

func NewTeamService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	assignmentRepo repositories.TeamParticipantRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	hub Broadcaster,
	locks *MatchLocks,
	lockTimeout time.Duration,
) TeamService {
	if locks == nil {
		locks = NewMatchLocks()
	}
	return &teamService{
		tx:             tx,
		matchRepo:      matchRepo,
		teamRepo:       teamRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		uploader:       uploader,
		locks:          locks,
		hub:            hub,
		lockTimeout:    lockTimeout,
	}
}

func (s *teamService) broadcast(matchID int, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(MatchRoomID(matchID), MatchEvent{
		Type:    EventTeamUpdated,
		MatchID: matchID,
		Payload: payload,
	})
}

func (s *teamService) loadTeam(ctx context.Context, exec repositories.SQLExecutor, teamID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, exec, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to load team %d: %w", teamID, err)
	}
	return team, nil
}

// refreshTeam recomputes the cached player count from active rows and
// populates the derived fields. Runs inside the caller's transaction.
func (s *teamService) refreshTeam(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	current, err := s.teamRepo.RecomputeStats(ctx, exec, team.ID)
	if err != nil {
		return fmt.Errorf("failed to recompute stats for team %d: %w", team.ID, err)
	}
	team.CurrentPlayers = current

	active, err := s.assignmentRepo.ListActiveByTeam(ctx, exec, team.ID)
	if err != nil {
		return fmt.Errorf("failed to load active roster for team %d: %w", team.ID, err)
	}
	team.Players = active
	team.AvailablePositions = AvailablePositions(team.MaxPlayers, active)
	return nil
}

func (s *teamService) JoinTeam(ctx context.Context, matchID, teamID, userID, position int, role string) (*models.Team, error) {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	release, err := s.locks.Acquire(ctx, matchID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *models.Team
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.loadTeam(ctx, exec, teamID)
		if err != nil {
			return err
		}
		if team.MatchID != matchID {
			return fmt.Errorf("%w: team %d belongs to match %d", ErrTeamNotInMatch, teamID, team.MatchID)
		}
		if position < 1 || position > team.MaxPlayers {
			return fmt.Errorf("%w: position %d, roster 1..%d", ErrPositionOutOfRange, position, team.MaxPlayers)
		}

		active, err := s.assignmentRepo.ListActiveByTeam(ctx, exec, teamID)
		if err != nil {
			return err
		}
		for _, tp := range active {
			if tp.Position == position {
				return fmt.Errorf("%w: position %d on team %d", ErrPositionTaken, position, teamID)
			}
		}

		if _, err := s.assignmentRepo.FindActiveByMatchAndUser(ctx, exec, matchID, userID); err == nil {
			return ErrAlreadyRostered
		} else if !errors.Is(err, repositories.ErrAssignmentNotFound) {
			return err
		}

		tp := &models.TeamParticipant{
			MatchID:  matchID,
			TeamID:   teamID,
			UserID:   userID,
			Position: position,
			Role:     role,
		}
		if err := s.assignmentRepo.Create(ctx, exec, tp); err != nil {
			switch {
			case errors.Is(err, repositories.ErrAssignmentPositionConflict):
				return fmt.Errorf("%w: position %d on team %d", ErrPositionTaken, position, teamID)
			case errors.Is(err, repositories.ErrAssignmentUserConflict):
				return ErrAlreadyRostered
			}
			return err
		}

		if err := s.refreshTeam(ctx, exec, team); err != nil {
			return err
		}
		updated = team
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(matchID, updated)
	return updated, nil
}

func (s *teamService) LeaveTeam(ctx context.Context, matchID, userID int) (*models.Team, error) {
	release, err := s.locks.Acquire(ctx, matchID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *models.Team
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tp, err := s.assignmentRepo.FindActiveByMatchAndUser(ctx, exec, matchID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrAssignmentNotFound) {
				return ErrNotRostered
			}
			return err
		}

		if err := s.assignmentRepo.Deactivate(ctx, exec, tp.ID); err != nil {
			return err
		}

		team, err := s.loadTeam(ctx, exec, tp.TeamID)
		if err != nil {
			return err
		}
		if err := s.refreshTeam(ctx, exec, team); err != nil {
			return err
		}
		updated = team
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(matchID, updated)
	return updated, nil
}

func (s *teamService) GetAvailablePositions(ctx context.Context, teamID int) ([]int, error) {
	team, err := s.loadTeam(ctx, nil, teamID)
	if err != nil {
		return nil, err
	}
	active, err := s.assignmentRepo.ListActiveByTeam(ctx, nil, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active roster for team %d: %w", teamID, err)
	}
	return AvailablePositions(team.MaxPlayers, active), nil
}

func (s *teamService) UploadTeamLogo(ctx context.Context, teamID, callerID int, contentType string, file io.Reader) (*models.Team, error) {
	team, err := s.loadTeam(ctx, nil, teamID)
	if err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, nil, team.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", team.MatchID, err)
	}
	if match.CreatorID != callerID {
		return nil, ErrNotMatchCreator
	}

	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("teams/%d/logo%s", teamID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &key); err != nil {
		return nil, err
	}

	team.LogoKey = &key
	if url := s.uploader.GetPublicURL(key); url != "" {
		team.LogoURL = &url
	}
	return team, nil
}
