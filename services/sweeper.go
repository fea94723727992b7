package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchday-app/matchday-system/models"
	"github.com/matchday-app/matchday-system/repositories"
)

// sweepParallelism bounds how many matches a single sweep touches at once.
const sweepParallelism = 4

// SweepResult reports how many matches each sweep moved, for observability.
type SweepResult struct {
	MovedToLive      int `json:"moved_to_live"`
	MovedToCompleted int `json:"moved_to_completed"`
}

// StatusSweeper periodically re-evaluates UPCOMING matches against the clock
// and drives the time transitions. It goes through the same state machine and
// per-match locks as user-triggered operations, so there is exactly one
// transition authority and a sweep never interleaves with a manual call on
// the same match.
type StatusSweeper struct {
	tx        repositories.Transactor
	matchRepo repositories.MatchRepository
	locks     *MatchLocks
	clock     Clock
	hub       Broadcaster
	logger    *slog.Logger

	interval time.Duration
	// overdueAfter is the grace window: a due match within the window goes
	// LIVE, one overdue beyond it is closed out as COMPLETED.
	overdueAfter time.Duration
	// lockTimeout is deliberately short; a contended match is skipped and
	// picked up on the next tick instead of stalling the sweep.
	lockTimeout time.Duration
}

func NewStatusSweeper(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	locks *MatchLocks,
	clock Clock,
	hub Broadcaster,
	logger *slog.Logger,
	interval time.Duration,
	overdueAfter time.Duration,
) *StatusSweeper {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = NewMatchLocks()
	}
	return &StatusSweeper{
		tx:           tx,
		matchRepo:    matchRepo,
		locks:        locks,
		clock:        clock,
		hub:          hub,
		logger:       logger,
		interval:     interval,
		overdueAfter: overdueAfter,
		lockTimeout:  500 * time.Millisecond,
	}
}

// Run executes a sweep immediately, then on every tick until ctx is cancelled.
func (s *StatusSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "status sweeper started", slog.Duration("interval", s.interval))

	if _, err := s.RunStatusSweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "initial status sweep failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "status sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunStatusSweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "status sweep failed", slog.Any("error", err))
			}
		}
	}
}

// RunStatusSweep evaluates every due UPCOMING match against a single
// timestamp. Matches are swept independently: a storage fault or lock
// contention on one never blocks the rest.
func (s *StatusSweeper) RunStatusSweep(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()

	ids, err := s.matchRepo.ListDueForSweep(ctx, models.StatusUpcoming, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list due matches: %w", err)
	}
	if len(ids) == 0 {
		return SweepResult{}, nil
	}

	var movedToLive, movedToCompleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, id := range ids {
		matchID := id
		g.Go(func() error {
			trigger, swept, err := s.sweepOne(gctx, matchID, now)
			if err != nil {
				// Log and continue: sweep isolation beats completeness.
				s.logger.WarnContext(gctx, "failed to sweep match",
					slog.Int("match_id", matchID), slog.Any("error", err))
				return nil
			}
			if !swept {
				return nil
			}
			switch trigger {
			case TriggerSweepDue:
				movedToLive.Add(1)
			case TriggerSweepOverdue:
				movedToCompleted.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	result := SweepResult{
		MovedToLive:      int(movedToLive.Load()),
		MovedToCompleted: int(movedToCompleted.Load()),
	}
	if result.MovedToLive > 0 || result.MovedToCompleted > 0 {
		s.logger.InfoContext(ctx, "status sweep complete",
			slog.Int("moved_to_live", result.MovedToLive),
			slog.Int("moved_to_completed", result.MovedToCompleted))
	}
	return result, nil
}

func (s *StatusSweeper) sweepOne(ctx context.Context, matchID int, now time.Time) (MatchTrigger, bool, error) {
	release, err := s.locks.Acquire(ctx, matchID, s.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrMatchBusy) {
			// Contended by a user operation; next tick will catch it.
			return "", false, nil
		}
		return "", false, err
	}
	defer release()

	var trigger MatchTrigger
	var swept bool
	var updated *models.Match
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return nil // deleted since listing
			}
			return err
		}

		// Re-check under the lock: a racing manual call may already have
		// moved the match, and only UPCOMING is sweep-eligible.
		if match.Status != models.StatusUpcoming || match.ScheduledAt.After(now) {
			return nil
		}

		if now.Sub(match.ScheduledAt) > s.overdueAfter {
			trigger = TriggerSweepOverdue
		} else {
			trigger = TriggerSweepDue
		}

		if err := ApplyTransition(match, trigger, now); err != nil {
			return err
		}
		if err := s.matchRepo.Update(ctx, exec, match); err != nil {
			return err
		}
		swept = true
		updated = match
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if swept && s.hub != nil {
		s.hub.BroadcastToRoom(MatchRoomID(matchID), MatchEvent{
			Type:    EventMatchUpdated,
			MatchID: matchID,
			Payload: updated,
		})
	}
	return trigger, swept, nil
}
