package services

import (
	"fmt"
	"time"

	"github.com/matchday-app/matchday-system/models"
)

// MatchTrigger names the events that can move a match between statuses.
type MatchTrigger string

const (
	// TriggerFill fires when a join brings the roster to capacity.
	TriggerFill MatchTrigger = "fill"
	// TriggerReopen fires when a leave drops a full roster below capacity.
	TriggerReopen   MatchTrigger = "reopen"
	TriggerStart    MatchTrigger = "start"
	TriggerEnd      MatchTrigger = "end"
	TriggerCancel   MatchTrigger = "cancel"
	TriggerPostpone MatchTrigger = "postpone"
	// Time triggers are fired only by the status sweeper.
	TriggerSweepDue     MatchTrigger = "sweep_due"
	TriggerSweepOverdue MatchTrigger = "sweep_overdue"
)

type transition struct {
	from []models.MatchStatus
	to   models.MatchStatus
}

// transitionTable is the single authority on legal status changes. User
// operations and the sweeper both go through ApplyTransition; nothing else
// ever writes the status field.
var transitionTable = map[MatchTrigger]transition{
	TriggerFill:         {from: []models.MatchStatus{models.StatusUpcoming}, to: models.StatusFull},
	TriggerReopen:       {from: []models.MatchStatus{models.StatusFull}, to: models.StatusUpcoming},
	TriggerStart:        {from: []models.MatchStatus{models.StatusUpcoming, models.StatusFull}, to: models.StatusLive},
	TriggerEnd:          {from: []models.MatchStatus{models.StatusLive}, to: models.StatusCompleted},
	TriggerCancel:       {from: []models.MatchStatus{models.StatusUpcoming, models.StatusFull, models.StatusLive, models.StatusPostponed}, to: models.StatusCancelled},
	TriggerPostpone:     {from: []models.MatchStatus{models.StatusUpcoming, models.StatusFull}, to: models.StatusPostponed},
	TriggerSweepDue:     {from: []models.MatchStatus{models.StatusUpcoming}, to: models.StatusLive},
	TriggerSweepOverdue: {from: []models.MatchStatus{models.StatusUpcoming}, to: models.StatusCompleted},
}

// CanTransition reports whether trigger is legal from the given status.
func CanTransition(from models.MatchStatus, trigger MatchTrigger) bool {
	t, ok := transitionTable[trigger]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// ApplyTransition moves the match to the trigger's target status and applies
// the trigger's side effects. On an illegal trigger the match is left
// completely untouched, update counter included. The machine never reads the
// clock itself: "now" comes from the caller, so the sweeper can evaluate a
// whole tick against one timestamp.
func ApplyTransition(match *models.Match, trigger MatchTrigger, now time.Time) error {
	if !CanTransition(match.Status, trigger) {
		return fmt.Errorf("%w: cannot apply %q to match %d in status %q",
			ErrInvalidTransition, trigger, match.ID, match.Status)
	}

	match.Status = transitionTable[trigger].to

	switch trigger {
	case TriggerStart:
		startedAt := now
		match.StartedAt = &startedAt
	case TriggerEnd:
		endedAt := now
		match.EndedAt = &endedAt
	}
	// Sweep triggers carry no side effects beyond the status itself: an
	// overdue completion is a timeout fallback, not a played match.

	match.UpdateCount++
	match.LastUpdatedAt = now
	return nil
}
