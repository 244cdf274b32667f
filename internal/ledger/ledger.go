// Package ledger holds the vote transition rules shared by every store backend.
//
// A user has at most one vote per target. Voting again in the same direction
// retracts it, voting in the other direction switches it. Resolve is pure: the
// caller reads the previous direction and the counters, and writes back the
// result inside whatever critical section its backend provides.
package ledger

import (
	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Transition is the effect of one vote on a (user, target) pair.
type Transition struct {
	// Next is the direction stored after the vote, or models.None when the
	// record must be deleted.
	Next     models.Direction
	Counters models.Counters
	Outcome  models.Outcome
}

// Resolve computes the transition for a vote in direction dir when the user's
// current record is prev (models.None for no record).
func Resolve(prev, dir models.Direction, c models.Counters) (Transition, error) {
	if !dir.Valid() {
		return Transition{}, errs.InvalidArgument("direction must be \"up\" or \"down\"")
	}

	switch prev {
	case models.None:
		return Transition{
			Next:     dir,
			Counters: c.Add(dir, 1),
			Outcome:  models.OutcomeCast,
		}, nil
	case dir:
		return Transition{
			Next:     models.None,
			Counters: c.Add(dir, -1),
			Outcome:  models.OutcomeRetracted,
		}, nil
	case dir.Opposite():
		return Transition{
			Next:     dir,
			Counters: c.Add(prev, -1).Add(dir, 1),
			Outcome:  models.OutcomeSwitched,
		}, nil
	default:
		return Transition{}, errs.Wrap(errs.KindInternal, nil, "stored vote has unknown direction "+string(prev))
	}
}

// Result converts a transition into what the store hands back to callers.
func (t Transition) Result() models.VoteResult {
	return models.VoteResult{Counters: t.Counters, Outcome: t.Outcome, Current: t.Next}
}

// Tally counts directions; used to check counters against the records.
func Tally(dirs []models.Direction) models.Counters {
	var c models.Counters
	for _, d := range dirs {
		c = c.Add(d, 1)
	}
	return c
}
