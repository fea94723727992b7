package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/matchday-app/matchday-system/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchCreatorInvalid = errors.New("match creator conflict or invalid")
)

// MatchFilter narrows List results. Nil fields are ignored.
type MatchFilter struct {
	Status    *models.MatchStatus
	CreatorID *int
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	List(ctx context.Context, filter MatchFilter) ([]*models.Match, error)
	// ListDueForSweep returns ids of matches in the given status whose
	// scheduled time is at or before now.
	ListDueForSweep(ctx context.Context, status models.MatchStatus, now time.Time) ([]int, error)
	IncrementViews(ctx context.Context, id int) error
	DeleteCascade(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, creator_id, title, location, venue, scheduled_at, status, players_needed,
	started_at, ended_at, result_summary,
	total_joined, total_left, total_views, total_interested, update_count, last_updated_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (creator_id, title, location, venue, scheduled_at, status, players_needed, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, total_joined, total_left, total_views, total_interested, update_count, last_updated_at, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.CreatorID,
		match.Title,
		match.Location,
		match.Venue,
		match.ScheduledAt,
		match.Status,
		match.PlayersNeeded,
	).Scan(
		&match.ID,
		&match.TotalJoined,
		&match.TotalLeft,
		&match.TotalViews,
		&match.TotalInterested,
		&match.UpdateCount,
		&match.LastUpdatedAt,
		&match.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23503" && pqErr.Constraint == "matches_creator_id_fkey" {
				return ErrMatchCreatorInvalid
			}
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface {
	Scan(dest ...interface{}) error
}, m *models.Match) error {
	return rowScanner.Scan(
		&m.ID,
		&m.CreatorID,
		&m.Title,
		&m.Location,
		&m.Venue,
		&m.ScheduledAt,
		&m.Status,
		&m.PlayersNeeded,
		&m.StartedAt,
		&m.EndedAt,
		&m.ResultSummary,
		&m.TotalJoined,
		&m.TotalLeft,
		&m.TotalViews,
		&m.TotalInterested,
		&m.UpdateCount,
		&m.LastUpdatedAt,
		&m.CreatedAt,
	)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)

	m := &models.Match{}
	err := r.scanMatch(executor.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find match %d: %w", id, err)
	}
	return m, nil
}

// Update writes every mutable field back in one statement. Callers hold the
// per-match lock, so there is no concurrent writer to clobber.
func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET title = $1, location = $2, venue = $3, scheduled_at = $4, status = $5,
			started_at = $6, ended_at = $7, result_summary = $8,
			total_joined = $9, total_left = $10, total_interested = $11,
			update_count = $12, last_updated_at = $13
		WHERE id = $14`

	result, err := executor.ExecContext(ctx, query,
		match.Title,
		match.Location,
		match.Venue,
		match.ScheduledAt,
		match.Status,
		match.StartedAt,
		match.EndedAt,
		match.ResultSummary,
		match.TotalJoined,
		match.TotalLeft,
		match.TotalInterested,
		match.UpdateCount,
		match.LastUpdatedAt,
		match.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) List(ctx context.Context, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s FROM matches WHERE 1=1`, matchColumns))

	args := []interface{}{}
	argCounter := 1

	if filter.Status != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND status = $%d", argCounter))
		args = append(args, *filter.Status)
		argCounter++
	}
	if filter.CreatorID != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND creator_id = $%d", argCounter))
		args = append(args, *filter.CreatorID)
		argCounter++
	}
	if filter.From != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND scheduled_at >= $%d", argCounter))
		args = append(args, *filter.From)
		argCounter++
	}
	if filter.To != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND scheduled_at <= $%d", argCounter))
		args = append(args, *filter.To)
		argCounter++
	}

	queryBuilder.WriteString(" ORDER BY scheduled_at ASC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filter.Limit)
		argCounter++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if err := r.scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) ListDueForSweep(ctx context.Context, status models.MatchStatus, now time.Time) ([]int, error) {
	query := `SELECT id FROM matches WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at ASC`
	rows, err := r.db.QueryContext(ctx, query, status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches due for sweep: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementViews runs outside the per-match lock: views are a monotonic
// counter, not part of the guarded roster resource.
func (r *postgresMatchRepository) IncrementViews(ctx context.Context, id int) error {
	query := `UPDATE matches SET total_views = total_views + 1 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment views for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// DeleteCascade removes the match and all dependent rows as one unit, so a
// partial cascade can never leave orphans.
func (r *postgresMatchRepository) DeleteCascade(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)

	statements := []string{
		`DELETE FROM team_participants WHERE match_id = $1`,
		`DELETE FROM teams WHERE match_id = $1`,
		`DELETE FROM match_participants WHERE match_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := executor.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete match %d dependents: %w", id, err)
		}
	}

	result, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
