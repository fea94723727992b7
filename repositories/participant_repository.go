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
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrParticipantConflict     = errors.New("participant conflict: user already joined this match")
	ErrParticipantUserInvalid  = errors.New("participant user conflict or invalid")
	ErrParticipantMatchInvalid = errors.New("participant match conflict or invalid")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participant, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Participant, error)
	CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, matchID, userID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_participants (match_id, user_id)
		VALUES ($1, $2)
		RETURNING id, joined_at`

	err := executor.QueryRowContext(ctx, query, p.MatchID, p.UserID).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "match_participants_match_id_user_id_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "match_participants_user_id_fkey":
					return ErrParticipantUserInvalid
				case "match_participants_match_id_fkey":
					return ErrParticipantMatchInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) FindByMatchAndUser(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, match_id, user_id, joined_at FROM match_participants WHERE match_id = $1 AND user_id = $2`

	p := &models.Participant{}
	err := executor.QueryRowContext(ctx, query, matchID, userID).Scan(&p.ID, &p.MatchID, &p.UserID, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, match_id, user_id, joined_at FROM match_participants WHERE match_id = $1 ORDER BY joined_at ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for match %d: %w", matchID, err)
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.MatchID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_participants WHERE match_id = $1`, matchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants for match %d: %w", matchID, err)
	}
	return count, nil
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, matchID, userID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = $1 AND user_id = $2`, matchID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
