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
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamMatchInvalid = errors.New("team match conflict or invalid")
	ErrTeamNameConflict = errors.New("team name is already taken in this match")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Team, error)
	// RecomputeStats overwrites current_players from the authoritative
	// active assignment count and returns the fresh value.
	RecomputeStats(ctx context.Context, exec SQLExecutor, teamID int) (int, error)
	UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO teams (match_id, name, max_players)
		VALUES ($1, $2, $3)
		RETURNING id, current_players, created_at`

	err := executor.QueryRowContext(ctx, query, team.MatchID, team.Name, team.MaxPlayers).
		Scan(&team.ID, &team.CurrentPlayers, &team.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "teams_match_id_name_key" {
					return ErrTeamNameConflict
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "teams_match_id_fkey" {
					return ErrTeamMatchInvalid
				}
			}
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, match_id, name, max_players, current_players, logo_key, created_at FROM teams WHERE id = $1`

	t := &models.Team{}
	err := executor.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.MatchID, &t.Name, &t.MaxPlayers, &t.CurrentPlayers, &t.LogoKey, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Team, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, match_id, name, max_players, current_players, logo_key, created_at FROM teams WHERE match_id = $1 ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for match %d: %w", matchID, err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.MatchID, &t.Name, &t.MaxPlayers, &t.CurrentPlayers, &t.LogoKey, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) RecomputeStats(ctx context.Context, exec SQLExecutor, teamID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE teams
		SET current_players = (
			SELECT COUNT(*) FROM team_participants
			WHERE team_id = $1 AND is_active = TRUE
		)
		WHERE id = $1
		RETURNING current_players`

	var current int
	err := executor.QueryRowContext(ctx, query, teamID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTeamNotFound
		}
		return 0, fmt.Errorf("failed to recompute stats for team %d: %w", teamID, err)
	}
	return current, nil
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, logoKey, teamID)
	if err != nil {
		return fmt.Errorf("failed to update logo key for team %d: %w", teamID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
