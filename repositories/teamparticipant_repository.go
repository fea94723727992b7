package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/matchday-app/matchday-system/models"
)

var (
	ErrAssignmentNotFound         = errors.New("team assignment not found")
	ErrAssignmentPositionConflict = errors.New("position is already taken on this team")
	ErrAssignmentUserConflict     = errors.New("user already holds a position in this match")
)

type TeamParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tp *models.TeamParticipant) error
	FindActiveByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.TeamParticipant, error)
	ListActiveByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]models.TeamParticipant, error)
	// Deactivate soft-removes an assignment; the row stays for history.
	Deactivate(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresTeamParticipantRepository struct {
	db *sql.DB
}

func NewPostgresTeamParticipantRepository(db *sql.DB) TeamParticipantRepository {
	return &postgresTeamParticipantRepository{db: db}
}

func (r *postgresTeamParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamParticipantRepository) Create(ctx context.Context, exec SQLExecutor, tp *models.TeamParticipant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO team_participants (match_id, team_id, user_id, position, role, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, joined_at`

	err := executor.QueryRowContext(ctx, query,
		tp.MatchID,
		tp.TeamID,
		tp.UserID,
		tp.Position,
		tp.Role,
	).Scan(&tp.ID, &tp.JoinedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Partial unique indexes over is_active = TRUE rows back both
			// exclusivity invariants.
			switch pqErr.Constraint {
			case "team_participants_active_position_idx":
				return ErrAssignmentPositionConflict
			case "team_participants_active_user_idx":
				return ErrAssignmentUserConflict
			}
		}
		return fmt.Errorf("failed to create team assignment: %w", err)
	}
	tp.IsActive = true
	return nil
}

func (r *postgresTeamParticipantRepository) FindActiveByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.TeamParticipant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, team_id, user_id, position, role, is_active, joined_at
		FROM team_participants
		WHERE match_id = $1 AND user_id = $2 AND is_active = TRUE`

	tp := &models.TeamParticipant{}
	err := executor.QueryRowContext(ctx, query, matchID, userID).
		Scan(&tp.ID, &tp.MatchID, &tp.TeamID, &tp.UserID, &tp.Position, &tp.Role, &tp.IsActive, &tp.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to find active assignment: %w", err)
	}
	return tp, nil
}

func (r *postgresTeamParticipantRepository) ListActiveByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]models.TeamParticipant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, team_id, user_id, position, role, is_active, joined_at
		FROM team_participants
		WHERE team_id = $1 AND is_active = TRUE
		ORDER BY position ASC`

	rows, err := executor.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active assignments for team %d: %w", teamID, err)
	}
	defer rows.Close()

	assignments := make([]models.TeamParticipant, 0)
	for rows.Next() {
		var tp models.TeamParticipant
		if err := rows.Scan(&tp.ID, &tp.MatchID, &tp.TeamID, &tp.UserID, &tp.Position, &tp.Role, &tp.IsActive, &tp.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team assignment row: %w", err)
		}
		assignments = append(assignments, tp)
	}
	return assignments, rows.Err()
}

func (r *postgresTeamParticipantRepository) Deactivate(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE team_participants SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate team assignment %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrAssignmentNotFound)
}
